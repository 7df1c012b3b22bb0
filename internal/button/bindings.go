package button

import (
	"log/slog"

	"github.com/sweeney/refbox/internal/event"
)

// binding maps a debounced button event to the system event it raises.
type binding struct {
	button ID
	typ    EventType
}

var bindings = map[binding]event.ID{
	{User, EventHeld}:     event.EnterConfiguration,
	{User, EventPressed}:  event.ExitConfiguration,
	{Red, EventPressed}:   event.RedDecisionInput,
	{Black, EventPressed}: event.BlackDecisionInput,
}

// Binder translates button events into system events.
type Binder struct {
	sink   event.Sink
	logger *slog.Logger
}

// NewBinder creates a Binder that pushes into sink.
func NewBinder(sink event.Sink, logger *slog.Logger) *Binder {
	return &Binder{sink: sink, logger: logger}
}

// Handle pushes the system event bound to ev, if any.
func (b *Binder) Handle(ev Event) {
	id, ok := bindings[binding{ev.Button, ev.Type}]
	if !ok {
		return
	}
	if err := b.sink.Push(event.New(id)); err != nil {
		b.logger.Warn("button event not delivered", "button", ev.Button.String(), "event", id.String(), "error", err)
	}
}

// Lookup returns the system event bound to a button event.
func Lookup(id ID, typ EventType) (event.ID, bool) {
	e, ok := bindings[binding{id, typ}]
	return e, ok
}
