package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealBroker talks to an actual MQTT broker. Subscriptions survive
// reconnects and are restored in the connect handler.
type RealBroker struct {
	onStatus StatusFunc
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cfg    Config
	setup  bool
	client paho.Client
	subs   map[string]MessageHandler

	connMu    sync.RWMutex
	connected bool
}

// NewRealBroker creates an idle broker. onStatus may be nil.
func NewRealBroker(onStatus StatusFunc, logger *slog.Logger) *RealBroker {
	return &RealBroker{
		onStatus: onStatus,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[string]MessageHandler),
	}
}

// Setup stores the configuration and builds the client. Any previous client
// is torn down first.
func (b *RealBroker) Setup(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.QoS == 0 {
		cfg.QoS = DefaultQoS
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	b.Teardown()

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: b.now(),
		Event:     EventOffline,
		Reason:    "LWT",
	})
	if err != nil {
		return fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetWill(StatusTopic(cfg.Platform, cfg.Referee), string(will), cfg.QoS, true)

	opts.SetOnConnectHandler(func(c paho.Client) { b.handleConnect(c) })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) { b.handleLost(err) })

	b.mu.Lock()
	b.cfg = cfg
	b.client = paho.NewClient(opts)
	b.setup = true
	b.mu.Unlock()

	b.logger.Info("mqtt configured", "broker", cfg.BrokerURL(), "client_id", cfg.ClientID)
	return nil
}

// Start begins connecting. With connect retry enabled paho keeps trying in
// the background, so Start does not wait for the outcome.
func (b *RealBroker) Start() error {
	b.mu.Lock()
	client, ok := b.client, b.setup
	b.mu.Unlock()
	if !ok {
		return ErrNotSetUp
	}
	client.Connect()
	return nil
}

// Teardown publishes a graceful offline status when connected and
// disconnects. It is a no-op before Setup.
func (b *RealBroker) Teardown() error {
	b.mu.Lock()
	client, cfg := b.client, b.cfg
	b.client = nil
	b.setup = false
	b.mu.Unlock()

	if client == nil {
		return nil
	}

	if client.IsConnectionOpen() {
		payload, err := FormatSystemPayload(SystemEvent{
			Timestamp: b.now(),
			Event:     EventOffline,
			Reason:    "TEARDOWN",
		})
		if err == nil {
			t := client.Publish(StatusTopic(cfg.Platform, cfg.Referee), cfg.QoS, true, payload)
			t.WaitTimeout(cfg.PublishTimeout)
		}
	}
	client.Disconnect(250)

	b.setConnected(false)
	return nil
}

// Publish sends payload with the configured QoS and waits for the broker.
func (b *RealBroker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	client, cfg := b.client, b.cfg
	b.mu.Unlock()

	if client == nil || !b.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, cfg.QoS, false, payload)
	if !token.WaitTimeout(cfg.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. The subscription is sent now if
// connected and again after every reconnect.
func (b *RealBroker) Subscribe(topic string, handler MessageHandler) error {
	b.mu.Lock()
	b.subs[topic] = handler
	client, cfg := b.client, b.cfg
	b.mu.Unlock()

	if client == nil || !b.IsConnected() {
		return nil
	}
	token := client.Subscribe(topic, cfg.QoS, wrap(handler))
	if !token.WaitTimeout(cfg.PublishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe forgets topic so it is not restored on reconnect, and drops
// the live subscription if connected.
func (b *RealBroker) Unsubscribe(topic string) error {
	b.mu.Lock()
	delete(b.subs, topic)
	client, cfg := b.client, b.cfg
	b.mu.Unlock()

	if client == nil || !b.IsConnected() {
		return nil
	}
	token := client.Unsubscribe(topic)
	if !token.WaitTimeout(cfg.PublishTimeout) {
		return fmt.Errorf("unsubscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (b *RealBroker) IsConnected() bool {
	b.connMu.RLock()
	defer b.connMu.RUnlock()
	return b.connected
}

func (b *RealBroker) setConnected(v bool) {
	b.connMu.Lock()
	b.connected = v
	b.connMu.Unlock()
}

func (b *RealBroker) handleConnect(c paho.Client) {
	b.setConnected(true)

	b.mu.Lock()
	cfg := b.cfg
	subs := make(map[string]MessageHandler, len(b.subs))
	for t, h := range b.subs {
		subs[t] = h
	}
	b.mu.Unlock()

	for topic, h := range subs {
		c.Subscribe(topic, cfg.QoS, wrap(h))
	}

	payload, err := FormatSystemPayload(SystemEvent{Timestamp: b.now(), Event: EventOnline})
	if err == nil {
		c.Publish(StatusTopic(cfg.Platform, cfg.Referee), cfg.QoS, true, payload)
	}

	b.logger.Info("mqtt connected")
	if b.onStatus != nil {
		b.onStatus(StatusConnected, nil)
	}
}

func (b *RealBroker) handleLost(err error) {
	b.setConnected(false)
	b.logger.Warn("mqtt connection lost", "error", err)
	if b.onStatus != nil {
		b.onStatus(StatusDisconnected, err)
	}
}

func wrap(h MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		h(m.Topic(), m.Payload())
	}
}
