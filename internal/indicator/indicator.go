// Package indicator drives the status LEDs and buzzer.
//
// A pattern is applied immediately when selected and then advanced once per
// blink period by Step. The buzzer switches itself off after a fixed time.
package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/refbox/internal/gpio"
)

// Default timings.
const (
	DefaultBlinkPeriod = 500 * time.Millisecond
	DefaultBuzz        = 1000 * time.Millisecond
	DefaultLampTest    = 2000 * time.Millisecond
	// DefaultResolution is how often Run checks deadlines.
	DefaultResolution = 50 * time.Millisecond
)

// Mode selects how a pattern evolves on every blink period.
type Mode int

const (
	// ModeOff leaves the LEDs dark.
	ModeOff Mode = iota
	// ModeSteady rewrites the pattern bits every period.
	ModeSteady
	// ModeBlink toggles the pattern bits, leaving the rest alone.
	ModeBlink
	// ModeAlternate toggles all four LEDs so lit and dark swap.
	ModeAlternate
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSteady:
		return "steady"
	case ModeBlink:
		return "blink"
	case ModeAlternate:
		return "alternate"
	default:
		return "unknown"
	}
}

// Pattern is a mode plus the initial LED bits.
type Pattern struct {
	Mode Mode
	Bits uint8
}

// Named patterns.
var (
	PatternOff        = Pattern{Mode: ModeOff, Bits: 0x00}
	PatternConnecting = Pattern{Mode: ModeAlternate, Bits: 0x0A}
	PatternConfig     = Pattern{Mode: ModeBlink, Bits: 0x01}
	PatternLampTest   = Pattern{Mode: ModeSteady, Bits: 0x0F}
)

const allLEDs = 0x0F

// Timing configures the manager.
type Timing struct {
	BlinkPeriod time.Duration
	Buzz        time.Duration
	LampTest    time.Duration
}

// DefaultTiming returns the standard timings.
func DefaultTiming() Timing {
	return Timing{
		BlinkPeriod: DefaultBlinkPeriod,
		Buzz:        DefaultBuzz,
		LampTest:    DefaultLampTest,
	}
}

// Manager owns the LED and buzzer outputs.
type Manager struct {
	out    gpio.Outputs
	timing Timing
	now    func() time.Time
	logger *slog.Logger

	mu         sync.Mutex
	pattern    Pattern
	lastStep   time.Time
	patternEnd time.Time // zero = no lamp test running
	next       Pattern   // shown once the lamp test ends
	buzzing    bool
	buzzEnd    time.Time
}

// NewManager creates a manager. now is the clock used for every deadline.
func NewManager(out gpio.Outputs, timing Timing, now func() time.Time, logger *slog.Logger) *Manager {
	return &Manager{
		out:    out,
		timing: timing,
		now:    now,
		logger: logger,
	}
}

// Init runs the lamp test: all LEDs on for the lamp test time. Patterns
// selected meanwhile are held back and the latest one is shown when it ends.
func (m *Manager) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apply(PatternLampTest)
	m.patternEnd = m.now().Add(m.timing.LampTest)
	m.next = PatternOff
}

// Off switches the LEDs off.
func (m *Manager) Off() { m.Set(PatternOff) }

// Connecting shows the connecting pattern.
func (m *Manager) Connecting() { m.Set(PatternConnecting) }

// Config shows the configuration pattern.
func (m *Manager) Config() { m.Set(PatternConfig) }

// Set selects a pattern and writes its bits immediately, or queues it while
// the lamp test runs.
func (m *Manager) Set(p Pattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.patternEnd.IsZero() && m.now().Before(m.patternEnd) {
		m.next = p
		return
	}
	m.apply(p)
	m.patternEnd = time.Time{}
}

func (m *Manager) apply(p Pattern) {
	m.pattern = p
	m.lastStep = m.now()
	if err := m.out.SetLEDs(p.Bits); err != nil {
		m.logger.Warn("set leds failed", "pattern", p.Mode.String(), "error", err)
	}
}

// Pattern returns the active pattern.
func (m *Manager) Pattern() Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pattern
}

// Buzz switches the buzzer on. Calling it while on extends the deadline.
func (m *Manager) Buzz() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buzzEnd = m.now().Add(m.timing.Buzz)
	if m.buzzing {
		return
	}
	if err := m.out.SetBuzzer(true); err != nil {
		m.logger.Warn("buzzer on failed", "error", err)
		return
	}
	m.buzzing = true
}

// Buzzing reports whether the buzzer is on.
func (m *Manager) Buzzing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buzzing
}

// Step advances the pattern and expires deadlines.
func (m *Manager) Step(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buzzing && !now.Before(m.buzzEnd) {
		if err := m.out.SetBuzzer(false); err != nil {
			m.logger.Warn("buzzer off failed", "error", err)
		} else {
			m.buzzing = false
		}
	}

	if !m.patternEnd.IsZero() {
		if now.Before(m.patternEnd) {
			return
		}
		m.patternEnd = time.Time{}
		m.apply(m.next)
		return
	}

	if now.Sub(m.lastStep) < m.timing.BlinkPeriod {
		return
	}
	m.lastStep = now

	var err error
	switch m.pattern.Mode {
	case ModeSteady:
		err = m.out.SetLEDs(m.pattern.Bits)
	case ModeBlink:
		err = m.out.ToggleLEDs(m.pattern.Bits)
	case ModeAlternate:
		err = m.out.ToggleLEDs(allLEDs)
	}
	if err != nil {
		m.logger.Warn("led step failed", "pattern", m.pattern.Mode.String(), "error", err)
	}
}

// Run steps the manager on every tick until ctx is cancelled, then switches
// everything off.
func (m *Manager) Run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.out.SetLEDs(0)
			m.out.SetBuzzer(false)
			m.buzzing = false
			m.mu.Unlock()
			return
		case <-tick:
			m.Step(m.now())
		}
	}
}
