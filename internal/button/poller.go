package button

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweeney/refbox/internal/gpio"
)

// Sampler reads the current raw level of every button.
type Sampler interface {
	Sample() (Levels, error)
}

// Handler receives debounced events.
type Handler func(Event)

// Poller drives a Debouncer from a tick channel and forwards its events.
type Poller struct {
	debouncer *Debouncer
	sampler   Sampler
	handler   Handler
	logger    *slog.Logger
}

// NewPoller creates a poller. handler is called on the poller goroutine.
func NewPoller(d *Debouncer, s Sampler, handler Handler, logger *slog.Logger) *Poller {
	return &Poller{
		debouncer: d,
		sampler:   s,
		handler:   handler,
		logger:    logger,
	}
}

// Run polls on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, tick <-chan time.Time, now func() time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			levels, err := p.sampler.Sample()
			if err != nil {
				p.logger.Warn("button sample failed", "error", err)
				continue
			}
			for _, ev := range p.debouncer.Tick(levels, now()) {
				p.logger.Debug("button event", "button", ev.Button.String(), "type", string(ev.Type))
				if p.handler != nil {
					p.handler(ev)
				}
			}
		}
	}
}

// ReaderSampler adapts a gpio.Reader to Sampler.
type ReaderSampler struct {
	Reader gpio.Reader
}

// Sample reads the buttons in User, Red, Black order.
func (s ReaderSampler) Sample() (Levels, error) {
	v, err := s.Reader.Read()
	if err != nil {
		return Levels{}, err
	}
	return Levels{User: v.User, Red: v.Red, Black: v.Black}, nil
}
