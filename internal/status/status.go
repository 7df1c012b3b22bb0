// Package status provides a thread-safe status tracker for the refbox daemon.
// It is written by the wiring in main and read by the HTTP handlers.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SerialDevice      string
	RadioInterface    string
	StorePath         string
	HTTPAddr          string
	PollMs            int64
	DebounceMs        int64
	HoldMs            int64
	DecisionTimeoutMs int64
}

// Link mirrors the connectivity bridge.
type Link struct {
	Up              bool
	Addressed       bool
	BrokerConnected bool
	Sessions        int
}

// Counts are the counters shown on the status page.
type Counts struct {
	Pressed          [3]int // user, red, black
	Held             [3]int
	DecisionsSent    uint64
	DecisionsFailed  uint64
	DecisionRequests uint64
	DroppedEvents    uint64
	DroppedCommands  uint64
	Frames           uint64
	FrameErrors      uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State      string
	Link       Link
	ConfigMode bool
	DeviceID   int
	Platform   string
	Counts     Counts
	StartTime  time.Time
	Now        time.Time
	Network    *NetworkInfo
	Config     Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			DeviceID:  -1,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetState records the coordinator state.
func (t *Tracker) SetState(state string) {
	t.mu.Lock()
	t.snap.State = state
	t.mu.Unlock()
}

// SetLink records link and broker flags.
func (t *Tracker) SetLink(l Link) {
	t.mu.Lock()
	t.snap.Link = l
	t.mu.Unlock()
}

// SetConfigMode records whether configuration mode is on.
func (t *Tracker) SetConfigMode(on bool) {
	t.mu.Lock()
	t.snap.ConfigMode = on
	t.mu.Unlock()
}

// SetDeviceID records the referee number read from the ID switches.
func (t *Tracker) SetDeviceID(id int) {
	t.mu.Lock()
	t.snap.DeviceID = id
	t.mu.Unlock()
}

// SetPlatform records the platform of the current broker session.
func (t *Tracker) SetPlatform(p string) {
	t.mu.Lock()
	t.snap.Platform = p
	t.mu.Unlock()
}

// UpdateCounts replaces the counters.
func (t *Tracker) UpdateCounts(c Counts) {
	t.mu.Lock()
	t.snap.Counts = c
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
