// Package comms runs radio commands and decision publishing off the
// coordinator's goroutine.
//
// Commands and decisions are queued on bounded channels. A push that finds
// its queue full is retried a fixed number of times and then dropped.
package comms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sweeney/refbox/internal/event"
	"github.com/sweeney/refbox/internal/mqtt"
	"github.com/sweeney/refbox/internal/radio"
	"github.com/sweeney/refbox/internal/store"
)

// Queue sizing.
const (
	DefaultQueueSize = 10
	DefaultRetries   = 10
)

// commandTimeout bounds one radio command.
const commandTimeout = 30 * time.Second

// ErrPlatformNotSet is returned when the record has no platform name.
var ErrPlatformNotSet = errors.New("comms: platform name not set")

// Command is a queued radio request.
type Command int

const (
	CmdConnect Command = iota
	CmdDisconnect
	CmdReset
)

func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "connect"
	case CmdDisconnect:
		return "disconnect"
	case CmdReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ConfigMode is the configuration channel that owns configuration mode.
type ConfigMode interface {
	StartConfig(ctx context.Context) error
	StopConfig() error
}

// Options tune broker sessions.
type Options struct {
	Referee        int
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Stats counts decision publishes.
type Stats struct {
	DecisionsSent   uint64
	DecisionsFailed uint64
	Requests        uint64
	DroppedCommands uint64
}

// Manager is the communications collaborator.
type Manager struct {
	radio  radio.Radio
	broker mqtt.Broker
	store  store.Store
	config ConfigMode
	sink   event.Sink
	opts   Options
	logger *slog.Logger

	cmds      chan Command
	decisions chan bool
	retries   int

	mu       sync.Mutex
	platform string
	stats    Stats
}

// New creates a Manager. Run must be started for queued work to happen.
func New(r radio.Radio, b mqtt.Broker, st store.Store, cfg ConfigMode, sink event.Sink, opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		radio:     r,
		broker:    b,
		store:     st,
		config:    cfg,
		sink:      sink,
		opts:      opts,
		logger:    logger,
		cmds:      make(chan Command, DefaultQueueSize),
		decisions: make(chan bool, DefaultQueueSize),
		retries:   DefaultRetries,
	}
}

// Connect queues a reset followed by a connect with the stored credentials.
func (m *Manager) Connect() error { return m.signal(CmdConnect) }

// Disconnect queues a disconnect.
func (m *Manager) Disconnect() error { return m.signal(CmdDisconnect) }

// Reset queues a radio reset.
func (m *Manager) Reset() error { return m.signal(CmdReset) }

func (m *Manager) signal(c Command) error {
	if err := event.TrySend(m.cmds, c, m.retries, nil); err != nil {
		m.mu.Lock()
		m.stats.DroppedCommands++
		m.mu.Unlock()
		m.logger.Warn("command dropped", "command", c.String(), "error", err)
		return err
	}
	return nil
}

// PublishDecision queues a decision. The outcome arrives as
// DecisionAcknowledged or DecisionSendError.
func (m *Manager) PublishDecision(good bool) error {
	if err := event.TrySend(m.decisions, good, m.retries, nil); err != nil {
		m.logger.Warn("decision dropped", "good", good, "error", err)
		return err
	}
	return nil
}

// StartConfig turns configuration mode on.
func (m *Manager) StartConfig(ctx context.Context) error {
	return m.config.StartConfig(ctx)
}

// StopConfig turns configuration mode off.
func (m *Manager) StopConfig() error {
	return m.config.StopConfig()
}

// Stats returns decision and command counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Platform returns the platform of the current broker session.
func (m *Manager) Platform() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.platform
}

// Run executes queued commands and decisions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.commandLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		m.decisionLoop(ctx)
	}()
	wg.Wait()
}

func (m *Manager) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.cmds:
			m.execute(ctx, c)
		}
	}
}

func (m *Manager) decisionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case good := <-m.decisions:
			m.publish(good)
		}
	}
}

func (m *Manager) execute(ctx context.Context, c Command) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	m.logger.Info("radio command", "command", c.String())

	var err error
	switch c {
	case CmdConnect:
		err = m.connect(ctx)
	case CmdDisconnect:
		err = m.radio.Disconnect(ctx)
	case CmdReset:
		err = m.radio.Reset(ctx)
	}
	if err != nil {
		m.logger.Error("radio command failed", "command", c.String(), "error", err)
	}
}

func (m *Manager) connect(ctx context.Context) error {
	if err := m.radio.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	ssid, err := store.GetString(ctx, m.store, store.WiFiSSID, "")
	if err != nil {
		return err
	}
	psk, err := store.GetString(ctx, m.store, store.WiFiPSK, "")
	if err != nil {
		return err
	}
	return m.radio.Connect(ctx, radio.Credentials{SSID: ssid, PSK: psk})
}

func (m *Manager) publish(good bool) {
	platform := m.Platform()
	payload := mqtt.FormatDecision(m.opts.Referee, good)

	var err error
	if platform == "" {
		err = ErrPlatformNotSet
	} else {
		err = m.broker.Publish(mqtt.DecisionTopic(platform), payload)
	}

	m.mu.Lock()
	if err != nil {
		m.stats.DecisionsFailed++
	} else {
		m.stats.DecisionsSent++
	}
	m.mu.Unlock()

	id := event.DecisionAcknowledged
	if err != nil {
		m.logger.Warn("decision not sent", "payload", string(payload), "error", err)
		id = event.DecisionSendError
	} else {
		m.logger.Info("decision sent", "payload", string(payload), "platform", platform)
	}
	if perr := m.sink.Push(event.New(id)); perr != nil {
		m.logger.Warn("decision result not delivered", "event", id.String(), "error", perr)
	}
}

// SessionConfig builds the broker configuration from the record and
// subscribes to this platform's decision requests. It is the connectivity
// bridge's configuration source.
func (m *Manager) SessionConfig(ctx context.Context) (mqtt.Config, error) {
	server, err := store.GetString(ctx, m.store, store.MQTTServer, "")
	if err != nil {
		return mqtt.Config{}, err
	}
	portStr, err := store.GetString(ctx, m.store, store.MQTTPort, "")
	if err != nil {
		return mqtt.Config{}, err
	}
	port := mqtt.DefaultPort
	if portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return mqtt.Config{}, fmt.Errorf("invalid %s %q: %w", store.MQTTPort, portStr, err)
		}
	}
	platform, err := store.GetString(ctx, m.store, store.PlatformName, "")
	if err != nil {
		return mqtt.Config{}, err
	}
	if platform == "" {
		return mqtt.Config{}, ErrPlatformNotSet
	}
	clientID, err := store.GetString(ctx, m.store, store.MQTTClient, "")
	if err != nil {
		return mqtt.Config{}, err
	}
	if clientID == "" {
		clientID = fmt.Sprintf("refbox-%s-%d", platform, m.opts.Referee)
	}

	m.mu.Lock()
	prev := m.platform
	m.platform = platform
	m.mu.Unlock()

	if prev != "" && prev != platform {
		if err := m.broker.Unsubscribe(mqtt.DecisionRequestTopic(prev)); err != nil {
			m.logger.Warn("decision request unsubscribe failed", "platform", prev, "error", err)
		}
	}
	if err := m.broker.Subscribe(mqtt.DecisionRequestTopic(platform), m.handleRequest); err != nil {
		m.logger.Warn("decision request subscription failed", "error", err)
	}

	return mqtt.Config{
		Server:         server,
		Port:           port,
		ClientID:       clientID,
		Platform:       platform,
		Referee:        m.opts.Referee,
		QoS:            m.opts.QoS,
		ConnectTimeout: m.opts.ConnectTimeout,
		PublishTimeout: m.opts.PublishTimeout,
	}, nil
}

func (m *Manager) handleRequest(topic string, payload []byte) {
	if !mqtt.IsDecisionRequest(payload, m.opts.Referee) {
		return
	}
	m.mu.Lock()
	m.stats.Requests++
	m.mu.Unlock()

	m.logger.Info("decision requested", "topic", topic)
	if err := m.sink.Push(event.New(event.DecisionRequestReceived)); err != nil {
		m.logger.Warn("decision request not delivered", "error", err)
	}
}
