package protocol

import "errors"

var (
	// ErrChecksum is returned by Decode when the checksum byte does not match.
	ErrChecksum = errors.New("protocol: checksum mismatch")

	// ErrMalformed is returned for frames with a bad marker, inconsistent
	// lengths, or bytes that cannot be framed.
	ErrMalformed = errors.New("protocol: malformed frame")

	// ErrOverflow is returned when a frame exceeds the receive buffer.
	ErrOverflow = errors.New("protocol: receive buffer overflow")

	// ErrAlreadyRunning is returned by StartConfig while configuration mode is on.
	ErrAlreadyRunning = errors.New("protocol: configuration already running")

	// ErrNotRunning is returned by StopConfig while configuration mode is off.
	ErrNotRunning = errors.New("protocol: configuration not running")
)
