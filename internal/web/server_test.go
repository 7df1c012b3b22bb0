package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/refbox/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		SerialDevice:      "/dev/serial0",
		RadioInterface:    "wlan0",
		PollMs:            5,
		DebounceMs:        10,
		HoldMs:            2000,
		DecisionTimeoutMs: 10000,
		HTTPAddr:          ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetState("idle-connected")
	tr.SetDeviceID(2)
	tr.SetPlatform("A")
	tr.SetLink(status.Link{Up: true, Addressed: true, BrokerConnected: true, Sessions: 1})
	tr.UpdateCounts(status.Counts{Pressed: [3]int{0, 5, 2}, DecisionsSent: 7})

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.State != "idle-connected" {
		t.Errorf("State: got %q, want idle-connected", sj.Status.State)
	}
	if sj.Status.DeviceID == nil || *sj.Status.DeviceID != 2 {
		t.Errorf("DeviceID: got %v, want 2", sj.Status.DeviceID)
	}
	if sj.Status.Platform != "A" {
		t.Errorf("Platform: got %q, want A", sj.Status.Platform)
	}
	if !sj.Status.Link.BrokerConnected {
		t.Error("expected Link.BrokerConnected=true")
	}
	if sj.Status.Counts.Red.Pressed != 5 {
		t.Errorf("Counts.Red.Pressed: got %d, want 5", sj.Status.Counts.Red.Pressed)
	}
	if sj.Status.Counts.DecisionsSent != 7 {
		t.Errorf("Counts.DecisionsSent: got %d, want 7", sj.Status.Counts.DecisionsSent)
	}
	if sj.Status.Config.DecisionTimeoutMs != 10000 {
		t.Errorf("Config.DecisionTimeoutMs: got %d, want 10000", sj.Status.Config.DecisionTimeoutMs)
	}
}

func TestJSONUnknownStateBeforeStart(t *testing.T) {
	ts, _ := newTestServer(t)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.State != "UNKNOWN" {
		t.Errorf("State before start: got %q, want UNKNOWN", sj.Status.State)
	}
	if sj.Status.DeviceID != nil {
		t.Errorf("DeviceID before read: got %v, want nil", *sj.Status.DeviceID)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetState("configuration")
	tr.SetConfigMode(true)
	tr.SetDeviceID(3)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Referee Box 3", "configuration", `class="config"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "UNKNOWN") {
		t.Error("expected UNKNOWN state before start")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, tr := newTestServer(t)
	up := status.Link{Up: true, Addressed: true, BrokerConnected: true}

	tests := []struct {
		name   string
		state  string
		link   status.Link
		config bool
		code   int
		body   string
	}{
		{"before start", "", status.Link{}, false, http.StatusServiceUnavailable, "starting"},
		{"lamp test", "init", up, false, http.StatusServiceUnavailable, "starting"},
		{"no radio", "connecting", status.Link{}, false, http.StatusServiceUnavailable, "radio link down"},
		{"no broker", "connecting", status.Link{Up: true, Addressed: true}, false, http.StatusServiceUnavailable, "broker disconnected"},
		{"configuring", "configuration", up, true, http.StatusServiceUnavailable, "configuration mode"},
		{"idle", "idle-connected", up, false, http.StatusOK, "ready"},
		{"requested", "decision-requested", up, false, http.StatusOK, "ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr.SetState(tt.state)
			tr.SetLink(tt.link)
			tr.SetConfigMode(tt.config)

			resp, err := http.Get(ts.URL + "/healthz")
			if err != nil {
				t.Fatalf("GET /healthz: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.code {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.code)
			}
			if got := strings.TrimSpace(string(body)); got != tt.body {
				t.Errorf("body: got %q, want %q", got, tt.body)
			}
		})
	}
}

func TestStatusIsReadOnly(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/", "/index.json", "/healthz"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, resp.StatusCode)
		}
	}
}

func TestJSONNotCached(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control: got %q, want no-store", cc)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	tr.SetState("connecting")
	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Link.BrokerConnected {
		t.Error("expected broker disconnected initially")
	}

	tr.SetState("idle-connected")
	tr.SetLink(status.Link{Up: true, Addressed: true, BrokerConnected: true})

	sj2 := getJSON(t, ts.URL+"/index.json")
	if sj2.Status.State != "idle-connected" {
		t.Errorf("State: got %q, want idle-connected", sj2.Status.State)
	}
	if !sj2.Status.Link.BrokerConnected {
		t.Error("expected broker connected after update")
	}
}

func TestServeOnListener(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New("", tr, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	sj := getJSON(t, "http://"+ln.Addr().String()+"/index.json")
	if sj.Status.State != "UNKNOWN" {
		t.Errorf("State: got %q", sj.Status.State)
	}

	if err := srv.Shutdown(t.Context()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != http.ErrServerClosed {
		t.Errorf("Serve returned %v, want ErrServerClosed", err)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "1s"},
		{65 * time.Second, "1m 5s"},
		{time.Hour + time.Second, "1h 0m 1s"},
		{26*time.Hour + 3*time.Minute, "1d 2h 3m 0s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
