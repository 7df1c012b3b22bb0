package button

import (
	"sync"
	"time"
)

// Default timings.
const (
	DefaultPoll     = 5 * time.Millisecond
	DefaultDebounce = 10 * time.Millisecond
	DefaultHold     = 2000 * time.Millisecond
)

// Debouncer holds the button table. Edge (raw edge notifications) and Tick
// (periodic poll) may run on different goroutines; both take the table lock.
type Debouncer struct {
	mu       sync.Mutex
	debounce time.Duration
	hold     time.Duration
	buttons  [NumButtons]Button
	counts   Counts
}

// NewDebouncer creates a debouncer with every button idle.
func NewDebouncer(debounce, hold time.Duration) *Debouncer {
	d := &Debouncer{
		debounce: debounce,
		hold:     hold,
	}
	for i := range d.buttons {
		d.buttons[i].ID = ID(i)
	}
	return d
}

// Reset sets every button's debounced state from levels without emitting
// events. A button found pressed starts its hold timer at now.
func (d *Debouncer) Reset(levels Levels, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.buttons {
		b := &d.buttons[i]
		b.State = StateIdle
		if levels[i] {
			b.State = StateDown
		}
		b.Since = now
		b.Pending = PendingNone
		b.PendingSince = time.Time{}
	}
}

// Edge records a raw transition reported by the input hardware. Only the
// first edge of a burst arms the debounce timer; later edges are absorbed
// until Tick resolves it.
func (d *Debouncer) Edge(id ID, level bool, now time.Time) {
	if int(id) >= NumButtons {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	b := &d.buttons[id]
	if b.Pending != PendingNone || level == b.State.Pressed() {
		return
	}
	arm(b, level, now)
}

// Tick compares each button's raw level with its debounced state and returns
// the events that became stable at now.
func (d *Debouncer) Tick(levels Levels, now time.Time) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var events []Event
	for i := range d.buttons {
		if ev, ok := d.tickButton(&d.buttons[i], levels[i], now); ok {
			events = append(events, ev)
		}
	}

	for _, ev := range events {
		switch ev.Type {
		case EventPressed:
			d.counts.Pressed[ev.Button]++
		case EventReleased:
			d.counts.Released[ev.Button]++
		case EventHeld:
			d.counts.Held[ev.Button]++
		}
	}
	return events
}

func (d *Debouncer) tickButton(b *Button, level bool, now time.Time) (Event, bool) {
	if b.Pending != PendingNone {
		if now.Sub(b.PendingSince) < d.debounce {
			return Event{}, false
		}
		pending := b.Pending
		b.Pending = PendingNone

		switch {
		case pending == PendingPress && level:
			b.State = StateDown
			b.Since = now
			return Event{Button: b.ID, Type: EventPressed, Time: now}, true
		case pending == PendingRelease && !level:
			b.State = StateUp
			b.Since = now
			return Event{Button: b.ID, Type: EventReleased, Time: now}, true
		}
		// Level went back before the window closed: bounce.
		return Event{}, false
	}

	if level != b.State.Pressed() {
		arm(b, level, now)
		return Event{}, false
	}

	if b.State == StateDown && now.Sub(b.Since) >= d.hold {
		b.State = StateHeld
		return Event{Button: b.ID, Type: EventHeld, Time: now}, true
	}
	return Event{}, false
}

func arm(b *Button, level bool, now time.Time) {
	if level {
		b.Pending = PendingPress
	} else {
		b.Pending = PendingRelease
	}
	b.PendingSince = now
}

// Buttons returns a copy of the button table.
func (d *Debouncer) Buttons() [NumButtons]Button {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buttons
}

// CountsSnapshot returns a copy of the event counters.
func (d *Debouncer) CountsSnapshot() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts
}
