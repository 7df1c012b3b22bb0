package coordinator

import "fmt"

// State is the system state.
type State uint8

const (
	PreInit State = iota
	Init
	IdleDisconnected
	Connecting
	IdleConnected
	DecisionReceived
	DecisionRequested
	Configuration
	ConfigurationExiting
	numStates
)

var stateNames = [numStates]string{
	PreInit:              "pre-init",
	Init:                 "init",
	IdleDisconnected:     "idle-disconnected",
	Connecting:           "connecting",
	IdleConnected:        "idle-connected",
	DecisionReceived:     "decision-received",
	DecisionRequested:    "decision-requested",
	Configuration:        "configuration",
	ConfigurationExiting: "configuration-exiting",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// States returns every state in declaration order.
func States() []State {
	out := make([]State, 0, numStates)
	for s := State(0); s < numStates; s++ {
		out = append(out, s)
	}
	return out
}
