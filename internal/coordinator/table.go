package coordinator

import (
	"fmt"

	"github.com/sweeney/refbox/internal/event"
)

// rule holds one state's transitions. Specific events are looked up in on;
// everything else goes to fallback when set, or stays put.
type rule struct {
	on          map[event.ID]State
	fallback    State
	hasFallback bool
}

func (r rule) next(id event.ID) (State, bool) {
	if s, ok := r.on[id]; ok {
		return s, true
	}
	if r.hasFallback {
		return r.fallback, true
	}
	return 0, false
}

func always(s State) rule {
	return rule{fallback: s, hasFallback: true}
}

var table = map[State]rule{
	PreInit: always(Init),
	Init:    always(IdleDisconnected),
	IdleDisconnected: {
		on:          map[event.ID]State{event.EnterConfiguration: Configuration},
		fallback:    Connecting,
		hasFallback: true,
	},
	Connecting: {on: map[event.ID]State{
		event.ConnectionSucceeded: IdleConnected,
		event.ConnectionLost:      IdleDisconnected,
		event.EnterConfiguration:  Configuration,
	}},
	IdleConnected: {on: map[event.ID]State{
		event.RedDecisionInput:        DecisionReceived,
		event.BlackDecisionInput:      DecisionReceived,
		event.DecisionRequestReceived: DecisionRequested,
		event.EnterConfiguration:      Configuration,
		event.ConnectionLost:          IdleDisconnected,
	}},
	DecisionReceived: {on: map[event.ID]State{
		event.DecisionAcknowledged: IdleConnected,
		event.ConnectionLost:       IdleDisconnected,
	}},
	DecisionRequested: {on: map[event.ID]State{
		event.Timeout:            IdleConnected,
		event.RedDecisionInput:   DecisionReceived,
		event.BlackDecisionInput: DecisionReceived,
	}},
	Configuration: {on: map[event.ID]State{
		event.ExitConfiguration: ConfigurationExiting,
	}},
	ConfigurationExiting: always(IdleDisconnected),
}

// Next returns the state reached from s on id. ok is false when the event
// leaves s unchanged.
func Next(s State, id event.ID) (next State, ok bool) {
	r, found := table[s]
	if !found {
		return s, false
	}
	next, ok = r.next(id)
	if !ok {
		return s, false
	}
	return next, true
}

// Validate checks the transition table: every state has a rule, every
// target is a known state, and every state is reachable from PreInit.
func Validate() error {
	for _, s := range States() {
		if _, ok := table[s]; !ok {
			return fmt.Errorf("state %s has no rule", s)
		}
	}

	for s, r := range table {
		if s >= numStates {
			return fmt.Errorf("rule for unknown state %d", uint8(s))
		}
		for id, to := range r.on {
			if !id.Valid() {
				return fmt.Errorf("state %s: unknown event %d", s, uint8(id))
			}
			if to >= numStates {
				return fmt.Errorf("state %s on %s: unknown target %d", s, id, uint8(to))
			}
		}
		if r.hasFallback && r.fallback >= numStates {
			return fmt.Errorf("state %s: unknown fallback %d", s, uint8(r.fallback))
		}
	}

	seen := map[State]bool{PreInit: true}
	work := []State{PreInit}
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]
		r := table[s]
		targets := make([]State, 0, len(r.on)+1)
		for _, to := range r.on {
			targets = append(targets, to)
		}
		if r.hasFallback {
			targets = append(targets, r.fallback)
		}
		for _, to := range targets {
			if !seen[to] {
				seen[to] = true
				work = append(work, to)
			}
		}
	}
	for _, s := range States() {
		if !seen[s] {
			return fmt.Errorf("state %s is unreachable", s)
		}
	}
	return nil
}
