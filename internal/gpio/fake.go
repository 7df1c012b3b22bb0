package gpio

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted button samples.
type FakeReader struct {
	mu sync.Mutex

	// Samples contains scripted readings. Each call to Read() consumes the
	// next sample; the last one repeats once exhausted.
	Samples []Sample

	// ID is returned by DeviceID.
	ID int

	// ReadError, if set, is returned by Read().
	ReadError error

	// IDError, if set, is returned by DeviceID().
	IDError error

	// Closed tracks if Close was called
	Closed bool

	index int
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Set replaces the script with a single repeating sample.
func (f *FakeReader) Set(s Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []Sample{s}
	f.index = 0
}

// DeviceID returns the configured ID.
func (f *FakeReader) DeviceID() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IDError != nil {
		return 0, f.IDError
	}
	return f.ID, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeOutputs records LED and buzzer state.
type FakeOutputs struct {
	mu      sync.Mutex
	leds    uint8
	buzzer  bool
	history []uint8
	buzzes  int
	closed  bool

	// Err, if set, is returned by every setter.
	Err error
}

// NewFakeOutputs creates FakeOutputs with everything off.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{}
}

func (f *FakeOutputs) SetLEDs(bits uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.leds = bits & 0x0F
	f.history = append(f.history, f.leds)
	return nil
}

func (f *FakeOutputs) ToggleLEDs(bits uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.leds = (f.leds ^ bits) & 0x0F
	f.history = append(f.history, f.leds)
	return nil
}

func (f *FakeOutputs) SetBuzzer(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if on && !f.buzzer {
		f.buzzes++
	}
	f.buzzer = on
	return nil
}

func (f *FakeOutputs) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leds = 0
	f.buzzer = false
	f.closed = true
	return nil
}

// LEDs returns the current LED bits.
func (f *FakeOutputs) LEDs() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leds
}

// History returns every LED state written, oldest first.
func (f *FakeOutputs) History() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint8, len(f.history))
	copy(out, f.history)
	return out
}

// Buzzer reports whether the buzzer is on.
func (f *FakeOutputs) Buzzer() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buzzer
}

// Buzzes returns how many times the buzzer was switched on.
func (f *FakeOutputs) Buzzes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buzzes
}

// Closed reports whether Close was called.
func (f *FakeOutputs) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
