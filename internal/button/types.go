// Package button turns raw button levels into debounced press, release and
// hold events. The debounce logic has no hardware or OS dependencies; time is
// always injected.
package button

import (
	"fmt"
	"time"
)

// ID identifies one of the controller's buttons.
type ID uint8

const (
	User ID = iota
	Red
	Black

	NumButtons = 3
)

func (id ID) String() string {
	switch id {
	case User:
		return "USER"
	case Red:
		return "RED"
	case Black:
		return "BLACK"
	default:
		return fmt.Sprintf("BUTTON(%d)", uint8(id))
	}
}

// State is the debounced logical state of a button.
type State uint8

const (
	StateIdle State = iota // never pressed since start
	StateDown
	StateUp
	StateHeld
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDown:
		return "DOWN"
	case StateUp:
		return "UP"
	case StateHeld:
		return "HELD"
	default:
		return fmt.Sprintf("STATE(%d)", uint8(s))
	}
}

// Pressed reports whether the state counts as physically pressed.
func (s State) Pressed() bool {
	return s == StateDown || s == StateHeld
}

// Pending is a raw edge awaiting confirmation.
type Pending uint8

const (
	PendingNone Pending = iota
	PendingPress
	PendingRelease
)

// EventType is a debounced button event.
type EventType string

const (
	EventPressed  EventType = "PRESSED"
	EventReleased EventType = "RELEASED"
	EventHeld     EventType = "HELD"
)

// Event is emitted once per debounced edge or hold.
type Event struct {
	Button ID
	Type   EventType
	Time   time.Time
}

// Levels holds one raw sample per button. true = pressed (already converted
// from the electrical level).
type Levels [NumButtons]bool

// Button tracks debounce state for a single button.
type Button struct {
	ID ID
	// Current debounced state
	State State
	// Time the debounced state was last committed (hold timer start)
	Since time.Time
	// Raw edge awaiting confirmation
	Pending Pending
	// Time the pending edge was first observed
	PendingSince time.Time
}

// Counts tracks the number of debounced events per button since startup.
type Counts struct {
	Pressed  [NumButtons]int
	Released [NumButtons]int
	Held     [NumButtons]int
}
