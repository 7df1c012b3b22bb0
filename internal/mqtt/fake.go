package mqtt

import "sync"

// Message is a recorded publish.
type Message struct {
	Topic   string
	Payload []byte
}

// FakeBroker records calls for test assertions. Tests drive the link state
// with Connect and Drop, and inject messages with Deliver.
type FakeBroker struct {
	mu sync.Mutex

	onStatus StatusFunc

	// Config is the last configuration passed to Setup.
	Config Config

	Setups    int
	Starts    int
	Teardowns int

	// SetupError, StartError and PublishError, if set, are returned by the
	// matching calls.
	SetupError   error
	StartError   error
	PublishError error

	// ConnectOnStart makes Start report a connection immediately.
	ConnectOnStart bool

	published []Message
	subs      map[string]MessageHandler
	connected bool
}

// NewFakeBroker creates a FakeBroker. onStatus may be nil.
func NewFakeBroker(onStatus StatusFunc) *FakeBroker {
	return &FakeBroker{onStatus: onStatus, subs: make(map[string]MessageHandler)}
}

// SetStatusFunc replaces the status callback.
func (f *FakeBroker) SetStatusFunc(fn StatusFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onStatus = fn
}

func (f *FakeBroker) Setup(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetupError != nil {
		return f.SetupError
	}
	f.Config = cfg
	f.Setups++
	return nil
}

func (f *FakeBroker) Start() error {
	f.mu.Lock()
	if f.StartError != nil {
		f.mu.Unlock()
		return f.StartError
	}
	f.Starts++
	connect := f.ConnectOnStart
	f.mu.Unlock()

	if connect {
		f.Connect()
	}
	return nil
}

func (f *FakeBroker) Teardown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Teardowns++
	f.connected = false
	return nil
}

func (f *FakeBroker) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	if !f.connected {
		return ErrNotConnected
	}
	f.published = append(f.published, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (f *FakeBroker) Subscribe(topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

func (f *FakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

func (f *FakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Connect marks the link up and reports it.
func (f *FakeBroker) Connect() {
	f.mu.Lock()
	f.connected = true
	fn := f.onStatus
	f.mu.Unlock()
	if fn != nil {
		fn(StatusConnected, nil)
	}
}

// Drop marks the link down and reports err.
func (f *FakeBroker) Drop(err error) {
	f.mu.Lock()
	f.connected = false
	fn := f.onStatus
	f.mu.Unlock()
	if fn != nil {
		fn(StatusDisconnected, err)
	}
}

// Deliver invokes the handler subscribed to topic. It reports whether one
// was found.
func (f *FakeBroker) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.subs[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(topic, payload)
	return true
}

// Published returns every recorded publish, oldest first.
func (f *FakeBroker) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.published))
	copy(out, f.published)
	return out
}

// Subscribed reports whether topic has a handler.
func (f *FakeBroker) Subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

// Calls returns the Setup, Start and Teardown counts.
func (f *FakeBroker) Calls() (setups, starts, teardowns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Setups, f.Starts, f.Teardowns
}

// LastConfig returns the configuration passed to the last Setup.
func (f *FakeBroker) LastConfig() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Config
}
