// Package serial opens the configuration UART in raw 8N1 mode.
package serial

import (
	"errors"
	"fmt"

	tty "go.bug.st/serial"
)

// DefaultBaud is the configuration link speed.
const DefaultBaud = 115200

// Config selects the device and speed.
type Config struct {
	Device string
	Baud   int
}

// ErrUnsupportedBaud is returned for speeds the port cannot be set to.
type ErrUnsupportedBaud int

func (e ErrUnsupportedBaud) Error() string {
	return fmt.Sprintf("serial: unsupported baud rate %d", int(e))
}

// Port is an open serial device. Close unblocks a pending Read.
type Port = tty.Port

// mode returns the 8N1 line settings for cfg. A zero baud selects DefaultBaud.
func mode(cfg Config) (*tty.Mode, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	if baud < 0 {
		return nil, ErrUnsupportedBaud(baud)
	}
	return &tty.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   tty.NoParity,
		StopBits: tty.OneStopBit,
	}, nil
}

// Open opens cfg.Device in raw mode and discards anything already buffered.
func Open(cfg Config) (Port, error) {
	m, err := mode(cfg)
	if err != nil {
		return nil, err
	}
	p, err := tty.Open(cfg.Device, m)
	if err != nil {
		var perr *tty.PortError
		if errors.As(err, &perr) && perr.Code() == tty.InvalidSpeed {
			return nil, ErrUnsupportedBaud(m.BaudRate)
		}
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("serial: flush %s: %w", cfg.Device, err)
	}
	return p, nil
}
