package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestTopics(t *testing.T) {
	if got := DecisionTopic("A"); got != "owlcms/refbox/decision/A" {
		t.Errorf("DecisionTopic = %q", got)
	}
	if got := DecisionRequestTopic("A"); got != "owlcms/fop/decisionRequest/A" {
		t.Errorf("DecisionRequestTopic = %q", got)
	}
	if got := StatusTopic("A", 2); got != "owlcms/refbox/status/A/2" {
		t.Errorf("StatusTopic = %q", got)
	}
}

func TestFormatDecision(t *testing.T) {
	tests := []struct {
		referee int
		good    bool
		want    string
	}{
		{1, true, "1 good"},
		{1, false, "1 bad"},
		{3, true, "3 good"},
		{0, false, "0 bad"},
	}
	for _, tt := range tests {
		if got := string(FormatDecision(tt.referee, tt.good)); got != tt.want {
			t.Errorf("FormatDecision(%d, %v) = %q, want %q", tt.referee, tt.good, got, tt.want)
		}
	}
}

func TestIsDecisionRequest(t *testing.T) {
	tests := []struct {
		payload string
		referee int
		want    bool
	}{
		{"2", 2, true},
		{"1", 2, false},
		{"", 2, false},
		{"two", 2, false},
		{"2 ", 2, false},
	}
	for _, tt := range tests {
		if got := IsDecisionRequest([]byte(tt.payload), tt.referee); got != tt.want {
			t.Errorf("IsDecisionRequest(%q, %d) = %v, want %v", tt.payload, tt.referee, got, tt.want)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Server: "192.168.1.10", Port: 1883}, "tcp://192.168.1.10:1883"},
		{Config{Server: "broker.local"}, "tcp://broker.local:1883"},
		{Config{Server: "fe80::1", Port: 8883}, "tcp://[fe80::1]:8883"},
	}
	for _, tt := range tests {
		if got := tt.cfg.BrokerURL(); got != tt.want {
			t.Errorf("BrokerURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Server: "broker", Port: 1883, Platform: "A"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := []Config{
		{Port: 1883, Platform: "A"},
		{Server: "broker", Port: 70000, Platform: "A"},
		{Server: "broker", Port: 1883},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     EventOffline,
		Reason:    "LWT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"OFFLINE","reason":"LWT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     EventOnline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	system := parsed["system"].(map[string]interface{})
	if _, exists := system["reason"]; exists {
		t.Error("ONLINE should not have reason field")
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 10, 0, 0, 0, loc),
		Event:     EventShutdown,
	})

	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-10T08:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.System.Timestamp)
	}
}

func TestStatusString(t *testing.T) {
	if StatusConnected.String() != "connected" || StatusDisconnected.String() != "disconnected" {
		t.Error("unexpected status names")
	}
}

func TestFakeBrokerPublishRequiresConnection(t *testing.T) {
	f := NewFakeBroker(nil)

	if err := f.Publish("t", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}

	f.Connect()
	if err := f.Publish("t", []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := f.Published()
	if len(msgs) != 1 || msgs[0].Topic != "t" || string(msgs[0].Payload) != "x" {
		t.Errorf("unexpected messages %v", msgs)
	}
}

func TestFakeBrokerStatusCallbacks(t *testing.T) {
	var got []Status
	f := NewFakeBroker(func(s Status, err error) { got = append(got, s) })
	f.ConnectOnStart = true

	f.Setup(Config{Server: "b", Platform: "A"})
	f.Start()
	f.Drop(errors.New("eof"))

	if len(got) != 2 || got[0] != StatusConnected || got[1] != StatusDisconnected {
		t.Errorf("unexpected statuses %v", got)
	}
	if f.Setups != 1 || f.Starts != 1 {
		t.Errorf("unexpected call counts setups=%d starts=%d", f.Setups, f.Starts)
	}
	if f.IsConnected() {
		t.Error("expected disconnected after Drop")
	}
}

func TestFakeBrokerDeliver(t *testing.T) {
	f := NewFakeBroker(nil)
	var payload string
	f.Subscribe("req", func(topic string, p []byte) { payload = string(p) })

	if !f.Deliver("req", []byte("3")) {
		t.Fatal("expected handler")
	}
	if payload != "3" {
		t.Errorf("handler got %q", payload)
	}
	if f.Deliver("other", nil) {
		t.Error("unexpected handler for other topic")
	}
	if !f.Subscribed("req") {
		t.Error("expected subscription recorded")
	}
}

func TestFakeBrokerErrors(t *testing.T) {
	f := NewFakeBroker(nil)
	f.SetupError = errors.New("bad config")
	f.StartError = errors.New("no route")
	f.PublishError = errors.New("boom")

	if err := f.Setup(Config{}); err == nil {
		t.Error("expected setup error")
	}
	if err := f.Start(); err == nil {
		t.Error("expected start error")
	}
	f.Connect()
	if err := f.Publish("t", nil); err == nil {
		t.Error("expected publish error")
	}
}

func TestRealBrokerStartBeforeSetup(t *testing.T) {
	b := NewRealBroker(nil, discardLogger())
	if err := b.Start(); !errors.Is(err, ErrNotSetUp) {
		t.Errorf("expected ErrNotSetUp, got %v", err)
	}
	if err := b.Publish("t", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if err := b.Teardown(); err != nil {
		t.Errorf("Teardown before Setup: %v", err)
	}
}

func TestRealBrokerSetupValidates(t *testing.T) {
	b := NewRealBroker(nil, discardLogger())
	if err := b.Setup(Config{}); err == nil {
		t.Error("expected validation error")
	}
}

func TestRealBrokerSubscribeWhileDisconnected(t *testing.T) {
	b := NewRealBroker(nil, discardLogger())
	if err := b.Subscribe("req", func(string, []byte) {}); err != nil {
		t.Errorf("subscribe while disconnected should be deferred, got %v", err)
	}
	if _, ok := b.subs["req"]; !ok {
		t.Error("expected subscription tracked for restore")
	}
}

func TestRealBrokerUnsubscribeWhileDisconnected(t *testing.T) {
	b := NewRealBroker(nil, discardLogger())
	b.Subscribe("req/A", func(string, []byte) {})
	if err := b.Unsubscribe("req/A"); err != nil {
		t.Errorf("unsubscribe while disconnected: %v", err)
	}
	if _, ok := b.subs["req/A"]; ok {
		t.Error("unsubscribed topic must not be restored on reconnect")
	}
}

func TestFakeBrokerUnsubscribe(t *testing.T) {
	f := NewFakeBroker(nil)
	f.Subscribe("req", func(string, []byte) {})
	f.Unsubscribe("req")
	if f.Subscribed("req") || f.Deliver("req", []byte("1")) {
		t.Error("expected no handler after unsubscribe")
	}
}
