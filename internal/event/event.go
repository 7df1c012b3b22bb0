// Package event defines the closed set of System Events exchanged between the
// input pipelines and the coordinator, and the bounded queue that carries them.
package event

import "fmt"

// ID identifies a System Event.
type ID uint8

const (
	Tick ID = iota // no-op, synthesized when the queue is empty
	ConnectionSucceeded
	ConnectionLost
	RedDecisionInput
	BlackDecisionInput
	DecisionAcknowledged
	DecisionSendError
	DecisionRequestReceived
	Timeout
	EnterConfiguration
	ExitConfiguration

	numIDs
)

var idNames = [numIDs]string{
	Tick:                    "TICK",
	ConnectionSucceeded:     "CONN_SUCCESS",
	ConnectionLost:          "CONN_LOST",
	RedDecisionInput:        "INP_RED_DECISION",
	BlackDecisionInput:      "INP_BLK_DECISION",
	DecisionAcknowledged:    "DECISION_HANDLED",
	DecisionSendError:       "DECISION_SEND_ERR",
	DecisionRequestReceived: "DECISION_REQ_RX",
	Timeout:                 "TIMEOUT",
	EnterConfiguration:      "CONFIG",
	ExitConfiguration:       "CONFIG_END",
}

// Valid reports whether id belongs to the known vocabulary.
func (id ID) Valid() bool {
	return id < numIDs
}

func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", uint8(id))
	}
	return idNames[id]
}

// IDs returns every known event ID in declaration order.
func IDs() []ID {
	ids := make([]ID, 0, numIDs)
	for id := ID(0); id < numIDs; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Event is a payload-free or single-byte-payload signal.
type Event struct {
	ID      ID
	Payload byte
}

// New returns a payload-free event.
func New(id ID) Event {
	return Event{ID: id}
}

func (e Event) String() string {
	if e.Payload == 0 {
		return e.ID.String()
	}
	return fmt.Sprintf("%s(%d)", e.ID, e.Payload)
}

// Sink accepts events from a producer. Implementations must not block
// indefinitely.
type Sink interface {
	Push(e Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event) error

// Push calls f(e).
func (f SinkFunc) Push(e Event) error {
	return f(e)
}
