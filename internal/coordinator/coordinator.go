// Package coordinator runs the system state machine.
//
// One goroutine owns the state. Each scheduling tick it takes at most one
// event from the queue, or a synthesized Tick when the queue is empty, and
// applies the transition table. Entering a new state runs that state's entry
// action; staying in the same state runs its steady action.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sweeney/refbox/internal/event"
	"github.com/sweeney/refbox/internal/protocol"
	"github.com/sweeney/refbox/internal/restart"
)

// Defaults.
const (
	DefaultTick            = time.Millisecond
	DefaultDecisionTimeout = 10 * time.Second
)

// Source yields queued events without blocking.
type Source interface {
	TryPop() (event.Event, bool)
}

// Indicators is the LED and buzzer collaborator.
type Indicators interface {
	Init()
	Off()
	Connecting()
	Config()
	Buzz()
}

// Comms is the communications collaborator. Calls must not block on the
// network; results come back as events.
type Comms interface {
	Connect() error
	PublishDecision(good bool) error
	StartConfig(ctx context.Context) error
	StopConfig() error
}

// Timer is a pending timeout.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Observer is told about every state change.
type Observer func(from, to State, ev event.Event)

// Config holds the coordinator's collaborators.
type Config struct {
	Source     Source
	Sink       event.Sink
	Indicators Indicators
	Comms      Comms
	Restarter  restart.Restarter
	Logger     *slog.Logger

	// DecisionTimeout is how long decision-requested waits for an input.
	DecisionTimeout time.Duration
	// AfterFunc schedules the decision timeout. Defaults to time.AfterFunc.
	AfterFunc AfterFunc
	// Observer, if set, is called after every state change.
	Observer Observer
}

// Coordinator is the state machine. It is not safe for concurrent use;
// Run owns it.
type Coordinator struct {
	cfg   Config
	state State

	generation uint8
	timer      Timer

	entry  map[State]func(event.Event)
	steady map[State]func(event.Event)
}

// New creates a coordinator in PreInit.
func New(cfg Config) *Coordinator {
	if cfg.DecisionTimeout == 0 {
		cfg.DecisionTimeout = DefaultDecisionTimeout
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}

	c := &Coordinator{cfg: cfg, state: PreInit}
	c.entry = map[State]func(event.Event){
		Init:                 c.enterInit,
		Connecting:           c.enterConnecting,
		IdleConnected:        c.enterIdleConnected,
		DecisionReceived:     c.enterDecisionReceived,
		DecisionRequested:    c.enterDecisionRequested,
		Configuration:        c.enterConfiguration,
		ConfigurationExiting: c.enterConfigurationExiting,
	}
	c.steady = map[State]func(event.Event){
		DecisionReceived: c.steadyDecisionReceived,
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

// Run steps the machine on every tick until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			c.stopTimer()
			return
		case <-tick:
			ev, ok := c.cfg.Source.TryPop()
			if !ok {
				ev = event.New(event.Tick)
			}
			c.Step(ev)
		}
	}
}

// Step applies one event.
func (c *Coordinator) Step(ev event.Event) {
	if !ev.ID.Valid() {
		c.cfg.Logger.Warn("unknown event treated as tick", "event", ev.String())
		ev = event.New(event.Tick)
	}
	if ev.ID == event.Timeout && ev.Payload != c.generation {
		c.cfg.Logger.Debug("stale timeout ignored", "event", ev.String(), "generation", c.generation)
		ev = event.New(event.Tick)
	}

	from := c.state
	to, ok := Next(from, ev.ID)
	if !ok || to == from {
		if fn := c.steady[from]; fn != nil {
			fn(ev)
		}
		return
	}

	if from == DecisionRequested {
		c.stopTimer()
	}
	c.state = to
	if ev.ID != event.Tick {
		c.cfg.Logger.Info("state transition", "from", from.String(), "to", to.String(), "event", ev.String())
	} else {
		c.cfg.Logger.Debug("state transition", "from", from.String(), "to", to.String(), "event", ev.String())
	}

	if fn := c.entry[to]; fn != nil {
		fn(ev)
	}
	if c.cfg.Observer != nil {
		c.cfg.Observer(from, to, ev)
	}
}

func (c *Coordinator) enterInit(event.Event) {
	c.cfg.Indicators.Init()
}

func (c *Coordinator) enterConnecting(event.Event) {
	c.cfg.Indicators.Connecting()
	if err := c.cfg.Comms.Connect(); err != nil {
		c.cfg.Logger.Error("connect request failed", "error", err)
	}
}

func (c *Coordinator) enterIdleConnected(event.Event) {
	c.cfg.Indicators.Off()
}

func (c *Coordinator) enterDecisionReceived(ev event.Event) {
	good := ev.ID == event.BlackDecisionInput
	if err := c.cfg.Comms.PublishDecision(good); err != nil {
		c.cfg.Logger.Error("decision publish request failed", "good", good, "error", err)
		c.cfg.Indicators.Buzz()
	}
}

func (c *Coordinator) steadyDecisionReceived(ev event.Event) {
	if ev.ID == event.DecisionSendError {
		c.cfg.Indicators.Buzz()
	}
}

func (c *Coordinator) enterDecisionRequested(event.Event) {
	c.cfg.Indicators.Buzz()

	c.stopTimer()
	c.generation++
	gen := c.generation
	c.timer = c.cfg.AfterFunc(c.cfg.DecisionTimeout, func() {
		if err := c.cfg.Sink.Push(event.Event{ID: event.Timeout, Payload: gen}); err != nil {
			c.cfg.Logger.Warn("decision timeout not delivered", "error", err)
		}
	})
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) enterConfiguration(event.Event) {
	c.cfg.Indicators.Config()
	err := c.cfg.Comms.StartConfig(context.Background())
	switch {
	case errors.Is(err, protocol.ErrAlreadyRunning):
		c.cfg.Logger.Debug("configuration already running")
	case err != nil:
		c.cfg.Logger.Error("start configuration failed", "error", err)
	}
}

func (c *Coordinator) enterConfigurationExiting(event.Event) {
	err := c.cfg.Comms.StopConfig()
	switch {
	case errors.Is(err, protocol.ErrNotRunning):
		c.cfg.Logger.Debug("configuration already stopped")
	case err != nil:
		c.cfg.Logger.Error("stop configuration failed", "error", err)
	}

	c.cfg.Logger.Warn("restarting device")
	if err := c.cfg.Restarter.Restart(); err != nil {
		c.cfg.Logger.Error("restart failed", "error", err)
	}
}
