// Package store persists the device settings record.
//
// Values are opaque byte strings keyed by parameter name. The SQLite store
// survives restarts; the memory store is for tests and diskless runs.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a setting has never been written.
var ErrNotFound = errors.New("store: setting not found")

// Setting names.
const (
	WiFiSSID     = "wifi_ssid"
	WiFiPSK      = "wifi_psk"
	MQTTServer   = "mqtt_srv"
	MQTTPort     = "mqtt_port"
	MQTTClient   = "mqtt_client_name"
	PlatformName = "owlcms_platform_name"
)

// Names lists every setting in protocol parameter order.
func Names() []string {
	return []string{WiFiSSID, WiFiPSK, MQTTServer, MQTTPort, MQTTClient, PlatformName}
}

// Store reads and writes settings.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, value []byte) error
	Close() error
}

// GetString returns a setting as a string, or def if it is unset.
func GetString(ctx context.Context, s Store, name, def string) (string, error) {
	v, err := s.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}
