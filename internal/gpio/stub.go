//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(pins Pins, onEdge EdgeFunc) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (Sample, error) {
	return Sample{}, errUnsupported
}

// DeviceID is not implemented on non-Linux platforms.
func (r *RealReader) DeviceID() (int, error) {
	return 0, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealOutputs is not available on non-Linux platforms.
type RealOutputs struct{}

// NewRealOutputs returns an error on non-Linux platforms.
func NewRealOutputs(pins Pins) (*RealOutputs, error) {
	return nil, errUnsupported
}

func (o *RealOutputs) SetLEDs(bits uint8) error    { return errUnsupported }
func (o *RealOutputs) ToggleLEDs(bits uint8) error { return errUnsupported }
func (o *RealOutputs) SetBuzzer(on bool) error     { return errUnsupported }
func (o *RealOutputs) Close() error                { return nil }
