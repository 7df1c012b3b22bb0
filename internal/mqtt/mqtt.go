// Package mqtt provides the broker collaborator with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrNotConnected is returned by Publish while the broker link is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// ErrNotSetUp is returned by Start before Setup.
var ErrNotSetUp = errors.New("mqtt: not set up")

// Topic roots.
const (
	topicDecision        = "owlcms/refbox/decision/"
	topicDecisionRequest = "owlcms/fop/decisionRequest/"
	topicStatus          = "owlcms/refbox/status/"
)

// System event names published on the status topic.
const (
	EventOnline   = "ONLINE"
	EventOffline  = "OFFLINE"
	EventShutdown = "SHUTDOWN"
)

// Defaults.
const (
	DefaultPort           = 1883
	DefaultQoS            = 1
	DefaultConnectTimeout = 10 * time.Second
	DefaultPublishTimeout = 5 * time.Second
)

// Status is the broker link state reported through a StatusFunc.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnected
)

func (s Status) String() string {
	if s == StatusConnected {
		return "connected"
	}
	return "disconnected"
}

// StatusFunc receives broker link changes. err is set when the link was lost.
type StatusFunc func(s Status, err error)

// MessageHandler receives messages on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Config selects the broker and identifies this unit.
type Config struct {
	Server   string
	Port     int
	ClientID string
	Platform string
	Referee  int

	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// BrokerURL returns the tcp:// URL for the configured server.
func (c Config) BrokerURL() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return "tcp://" + net.JoinHostPort(c.Server, strconv.Itoa(port))
}

// Validate reports configuration that cannot reach a broker.
func (c Config) Validate() error {
	if c.Server == "" {
		return errors.New("mqtt: server not set")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("mqtt: invalid port %d", c.Port)
	}
	if c.Platform == "" {
		return errors.New("mqtt: platform not set")
	}
	return nil
}

// Broker is the publish/subscribe collaborator. Start returns once the
// connection attempt is under way; the outcome arrives through the
// StatusFunc given to the implementation's constructor.
type Broker interface {
	Setup(cfg Config) error
	Start() error
	Teardown() error
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// DecisionTopic is where this platform's decisions are published.
func DecisionTopic(platform string) string {
	return topicDecision + platform
}

// DecisionRequestTopic carries requests for a referee's decision.
func DecisionRequestTopic(platform string) string {
	return topicDecisionRequest + platform
}

// StatusTopic carries this unit's availability.
func StatusTopic(platform string, referee int) string {
	return topicStatus + platform + "/" + strconv.Itoa(referee)
}

// FormatDecision builds the decision payload: "<referee> good" for a black
// (good lift) decision, "<referee> bad" for red.
func FormatDecision(referee int, good bool) []byte {
	verdict := "bad"
	if good {
		verdict = "good"
	}
	return []byte(strconv.Itoa(referee) + " " + verdict)
}

// IsDecisionRequest reports whether payload asks this referee to decide.
func IsDecisionRequest(payload []byte, referee int) bool {
	n, err := strconv.Atoi(string(payload))
	return err == nil && n == referee
}

// SystemEvent is a lifecycle message on the status topic.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // ONLINE, OFFLINE, SHUTDOWN
	Reason    string
}

// SystemPayload is the JSON envelope for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
