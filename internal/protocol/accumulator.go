package protocol

// Accumulator splits a byte stream into delimited buffers.
type Accumulator struct {
	buf      []byte
	overflow bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{buf: make([]byte, 0, BufferSize)}
}

// Feed adds one byte. When b completes a buffer, Feed returns it with done
// set. A buffer that outgrew BufferSize is discarded and reported as
// ErrOverflow on its delimiter. Delimiters on an empty buffer are ignored.
func (a *Accumulator) Feed(b byte) (frame []byte, done bool, err error) {
	if b != Delimiter {
		if len(a.buf) < BufferSize {
			a.buf = append(a.buf, b)
		} else {
			a.overflow = true
		}
		return nil, false, nil
	}

	if a.overflow {
		a.reset()
		return nil, true, ErrOverflow
	}
	if len(a.buf) == 0 {
		return nil, false, nil
	}
	frame = append([]byte(nil), a.buf...)
	a.reset()
	return frame, true, nil
}

// Pending returns the number of buffered bytes.
func (a *Accumulator) Pending() int { return len(a.buf) }

func (a *Accumulator) reset() {
	a.buf = a.buf[:0]
	a.overflow = false
}
