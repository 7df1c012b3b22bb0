package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/refbox/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

// formatUptime renders d as "1d 2h 3m 4s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	parts := []struct {
		n    int64
		unit string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}
	var b strings.Builder
	for i, p := range parts {
		if b.Len() == 0 && p.n == 0 && i < len(parts)-1 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d%s", p.n, p.unit)
	}
	return b.String()
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Referee Box{{if ge .DeviceID 0}} {{.DeviceID}}{{end}}</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 1.5em auto; padding: 0 1em; color: #222; }
h1 { font-size: 1.3em; border-bottom: 2px solid #333; }
h2 { font-size: 1.05em; margin-bottom: 0.3em; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 3px 6px; }
th { width: 45%; font-weight: normal; color: #555; }
tr:nth-child(even) { background: #f4f4f4; }
.up { color: #080; }
.down { color: #c00; }
.config { color: #c60; font-weight: bold; }
</style>
</head>
<body>
<h1>Referee Box{{if ge .DeviceID 0}} {{.DeviceID}}{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state"{{if .ConfigMode}} class="config"{{end}}>{{stateOrUnknown .State}}</td></tr>
<tr><th>Configuration mode</th><td>{{yesno .ConfigMode}}</td></tr>
<tr><th>Referee</th><td>{{if ge .DeviceID 0}}{{.DeviceID}}{{else}}unknown{{end}}</td></tr>
<tr><th>Platform</th><td>{{if .Platform}}{{.Platform}}{{else}}not set{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Link</th><td class="{{if .Link.Up}}up{{else}}down{{end}}">{{if .Link.Up}}up{{else}}down{{end}}</td></tr>
<tr><th>Address</th><td>{{yesno .Link.Addressed}}</td></tr>
<tr><th>Broker</th><td class="{{if .Link.BrokerConnected}}up{{else}}down{{end}}">{{if .Link.BrokerConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Sessions</th><td>{{.Link.Sessions}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>User pressed / held</th><td>{{index .Counts.Pressed 0}} / {{index .Counts.Held 0}}</td></tr>
<tr><th>Red pressed</th><td>{{index .Counts.Pressed 1}}</td></tr>
<tr><th>Black pressed</th><td>{{index .Counts.Pressed 2}}</td></tr>
<tr><th>Decisions sent</th><td>{{.Counts.DecisionsSent}}</td></tr>
<tr><th>Decisions failed</th><td>{{.Counts.DecisionsFailed}}</td></tr>
<tr><th>Decision requests</th><td>{{.Counts.DecisionRequests}}</td></tr>
<tr><th>Dropped events</th><td>{{.Counts.DroppedEvents}}</td></tr>
<tr><th>Dropped commands</th><td>{{.Counts.DroppedCommands}}</td></tr>
<tr><th>Config frames / errors</th><td>{{.Counts.Frames}} / {{.Counts.FrameErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Started}}</td></tr>
<tr><th>Serial</th><td>{{.Config.SerialDevice}}</td></tr>
<tr><th>Radio</th><td>{{.Config.RadioInterface}}</td></tr>
<tr><th>Store</th><td>{{.Config.StorePath}}</td></tr>
<tr><th>Poll / debounce / hold</th><td>{{.Config.PollMs}}ms / {{.Config.DebounceMs}}ms / {{.Config.HoldMs}}ms</td></tr>
<tr><th>Decision timeout</th><td>{{.Config.DecisionTimeoutMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">index.json</a></p>
</body>
</html>
`

type page struct {
	status.Snapshot
	Uptime  time.Duration
	Started string
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, page{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Started:  snap.StartTime.UTC().Format(time.RFC3339),
	})
}
