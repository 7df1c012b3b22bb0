// Package connectivity turns radio and broker status changes into
// connection events for the coordinator.
//
// A link session starts at the first link-up or address-acquired and ends at
// the next link-down. ConnectionSucceeded is raised at most once per session
// and ConnectionLost only when a session ends unexpectedly: a session ended by
// a reset or disconnect issued through Radio ends quietly. Broker loss is
// logged and recorded but raises nothing; the broker client reconnects by
// itself.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/refbox/internal/event"
	"github.com/sweeney/refbox/internal/mqtt"
	"github.com/sweeney/refbox/internal/radio"
)

// setupTimeout bounds loading the broker configuration.
const setupTimeout = 5 * time.Second

// ConfigSource builds the broker configuration for a new session.
type ConfigSource func(ctx context.Context) (mqtt.Config, error)

// Snapshot is the bridge's view of the link.
type Snapshot struct {
	LinkUp          bool
	Addressed       bool
	BrokerConnected bool
	Sessions        int
}

// Bridge tracks link and broker state.
type Bridge struct {
	broker mqtt.Broker
	source ConfigSource
	sink   event.Sink
	logger *slog.Logger

	mu        sync.Mutex
	state     Snapshot
	succeeded bool
	quiet     bool // next link-down was requested
	observer  func(Snapshot)
}

// New creates a Bridge.
func New(broker mqtt.Broker, source ConfigSource, sink event.Sink, logger *slog.Logger) *Bridge {
	return &Bridge{
		broker: broker,
		source: source,
		sink:   sink,
		logger: logger,
	}
}

// SetObserver registers a function called with every state change.
func (b *Bridge) SetObserver(fn func(Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = fn
}

// Snapshot returns the current state.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// HandleLink is the radio status callback.
func (b *Bridge) HandleLink(l radio.Link) {
	switch l {
	case radio.LinkUp:
		b.update(func(s *Snapshot) bool {
			if s.LinkUp {
				return false
			}
			s.LinkUp = true
			return true
		})
		b.logger.Info("link up")

	case radio.AddressAcquired:
		var start bool
		b.update(func(s *Snapshot) bool {
			s.LinkUp = true
			s.Addressed = true
			if b.succeeded {
				return true
			}
			b.succeeded = true
			s.Sessions++
			start = true
			return true
		})
		if !start {
			return
		}
		b.logger.Info("address acquired")
		b.startBroker()
		b.push(event.ConnectionSucceeded)

	case radio.LinkDown:
		var lost, quiet bool
		b.update(func(s *Snapshot) bool {
			if !s.LinkUp && !s.Addressed {
				return false
			}
			lost = true
			quiet = b.quiet
			b.quiet = false
			s.LinkUp = false
			s.Addressed = false
			s.BrokerConnected = false
			b.succeeded = false
			return true
		})
		if !lost {
			b.logger.Debug("link down while already down")
			return
		}
		if err := b.broker.Teardown(); err != nil {
			b.logger.Warn("broker teardown failed", "error", err)
		}
		if quiet {
			b.logger.Info("link down after reset")
			return
		}
		b.logger.Warn("link down")
		b.push(event.ConnectionLost)
	}
}

// Radio wraps r so that resets and disconnects issued through it end the
// current session without raising ConnectionLost.
func (b *Bridge) Radio(r radio.Radio) radio.Radio {
	return &quietRadio{Radio: r, bridge: b}
}

type quietRadio struct {
	radio.Radio
	bridge *Bridge
}

func (q *quietRadio) Disconnect(ctx context.Context) error {
	q.bridge.expectDown(true)
	err := q.Radio.Disconnect(ctx)
	if err != nil {
		q.bridge.expectDown(false)
	}
	return err
}

func (q *quietRadio) Reset(ctx context.Context) error {
	q.bridge.expectDown(true)
	err := q.Radio.Reset(ctx)
	if err != nil {
		q.bridge.expectDown(false)
	}
	return err
}

// expectDown marks the next link-down as requested. It only applies while
// a link is up; a down link produces no link-down to absorb.
func (b *Bridge) expectDown(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quiet = on && (b.state.LinkUp || b.state.Addressed)
}

// HandleBroker is the broker status callback.
func (b *Bridge) HandleBroker(s mqtt.Status, err error) {
	if s != mqtt.StatusConnected {
		b.update(func(st *Snapshot) bool {
			st.BrokerConnected = false
			return true
		})
		b.logger.Warn("broker disconnected", "error", err)
		return
	}

	var raise bool
	b.update(func(st *Snapshot) bool {
		st.BrokerConnected = true
		if st.LinkUp && !b.succeeded {
			b.succeeded = true
			st.Sessions++
			raise = true
		}
		return true
	})
	b.logger.Info("broker connected")
	if raise {
		b.push(event.ConnectionSucceeded)
	}
}

func (b *Bridge) startBroker() {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	cfg, err := b.source(ctx)
	if err != nil {
		b.logger.Error("broker configuration unavailable", "error", err)
		return
	}
	if err := b.broker.Setup(cfg); err != nil {
		b.logger.Error("broker setup failed", "error", err)
		return
	}
	if err := b.broker.Start(); err != nil {
		b.logger.Error("broker start failed", "error", err)
	}
}

// update applies fn under the lock and notifies the observer when fn
// reports a change.
func (b *Bridge) update(fn func(*Snapshot) bool) {
	b.mu.Lock()
	changed := fn(&b.state)
	snap, obs := b.state, b.observer
	b.mu.Unlock()

	if changed && obs != nil {
		obs(snap)
	}
}

func (b *Bridge) push(id event.ID) {
	if err := b.sink.Push(event.New(id)); err != nil {
		b.logger.Warn("connectivity event not delivered", "event", id.String(), "error", err)
	}
}
