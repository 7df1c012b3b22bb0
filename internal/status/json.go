package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	State         string       `json:"state"`
	ConfigMode    bool         `json:"config_mode"`
	DeviceID      *int         `json:"device_id"`
	Platform      string       `json:"platform,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Link          LinkJSON     `json:"link"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// LinkJSON reports radio and broker state.
type LinkJSON struct {
	Up              bool `json:"up"`
	Addressed       bool `json:"addressed"`
	BrokerConnected bool `json:"broker_connected"`
	Sessions        int  `json:"sessions"`
}

// ButtonCountsJSON counts debounced events for one button.
type ButtonCountsJSON struct {
	Pressed int `json:"pressed"`
	Held    int `json:"held"`
}

// CountsJSON is the JSON representation of the counters.
type CountsJSON struct {
	User             ButtonCountsJSON `json:"user"`
	Red              ButtonCountsJSON `json:"red"`
	Black            ButtonCountsJSON `json:"black"`
	DecisionsSent    uint64           `json:"decisions_sent"`
	DecisionsFailed  uint64           `json:"decisions_failed"`
	DecisionRequests uint64           `json:"decision_requests"`
	DroppedEvents    uint64           `json:"dropped_events"`
	DroppedCommands  uint64           `json:"dropped_commands"`
	Frames           uint64           `json:"frames"`
	FrameErrors      uint64           `json:"frame_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SerialDevice      string `json:"serial_device"`
	RadioInterface    string `json:"radio_interface"`
	StorePath         string `json:"store_path"`
	HTTPAddr          string `json:"http_addr"`
	PollMs            int64  `json:"poll_ms"`
	DebounceMs        int64  `json:"debounce_ms"`
	HoldMs            int64  `json:"hold_ms"`
	DecisionTimeoutMs int64  `json:"decision_timeout_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	state := snap.State
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:         state,
		ConfigMode:    snap.ConfigMode,
		Platform:      snap.Platform,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Link: LinkJSON{
			Up:              snap.Link.Up,
			Addressed:       snap.Link.Addressed,
			BrokerConnected: snap.Link.BrokerConnected,
			Sessions:        snap.Link.Sessions,
		},
		Counts: CountsJSON{
			User:             ButtonCountsJSON{Pressed: snap.Counts.Pressed[0], Held: snap.Counts.Held[0]},
			Red:              ButtonCountsJSON{Pressed: snap.Counts.Pressed[1], Held: snap.Counts.Held[1]},
			Black:            ButtonCountsJSON{Pressed: snap.Counts.Pressed[2], Held: snap.Counts.Held[2]},
			DecisionsSent:    snap.Counts.DecisionsSent,
			DecisionsFailed:  snap.Counts.DecisionsFailed,
			DecisionRequests: snap.Counts.DecisionRequests,
			DroppedEvents:    snap.Counts.DroppedEvents,
			DroppedCommands:  snap.Counts.DroppedCommands,
			Frames:           snap.Counts.Frames,
			FrameErrors:      snap.Counts.FrameErrors,
		},
		Config: ConfigJSON{
			SerialDevice:      snap.Config.SerialDevice,
			RadioInterface:    snap.Config.RadioInterface,
			StorePath:         snap.Config.StorePath,
			HTTPAddr:          snap.Config.HTTPAddr,
			PollMs:            snap.Config.PollMs,
			DebounceMs:        snap.Config.DebounceMs,
			HoldMs:            snap.Config.HoldMs,
			DecisionTimeoutMs: snap.Config.DecisionTimeoutMs,
		},
	}
	if snap.DeviceID >= 0 {
		id := snap.DeviceID
		inner.DeviceID = &id
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
