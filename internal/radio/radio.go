// Package radio controls the Wi-Fi link and reports its status.
package radio

import (
	"context"
	"errors"
)

// ErrNoDevice is returned when the configured interface is not managed.
var ErrNoDevice = errors.New("radio: no such device")

// ErrNoSSID is returned by Connect without a network name.
var ErrNoSSID = errors.New("radio: ssid not set")

// Link is a radio status change.
type Link int

const (
	LinkDown Link = iota
	LinkUp
	AddressAcquired
)

func (l Link) String() string {
	switch l {
	case LinkDown:
		return "link-down"
	case LinkUp:
		return "link-up"
	case AddressAcquired:
		return "address-acquired"
	default:
		return "unknown"
	}
}

// StatusFunc receives link changes. It is called from the radio's own
// goroutine and must not block.
type StatusFunc func(Link)

// Credentials select and authenticate a network. An empty PSK joins an open
// network.
type Credentials struct {
	SSID string
	PSK  string
}

// Radio is the network collaborator.
type Radio interface {
	Connect(ctx context.Context, creds Credentials) error
	Disconnect(ctx context.Context) error
	Reset(ctx context.Context) error
}
