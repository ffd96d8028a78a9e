package web

import (
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/irrigation-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	// uptime renders the time since start, e.g. "3 hours".
	"uptime": func(start, now time.Time) string {
		return strings.TrimSpace(humanize.RelTime(start, now, "", ""))
	},
	"relative": func(t, now time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.RelTime(t, now, "ago", "from now")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Irrigation Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.warning { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Irrigation Controller</h1>

<h2>State</h2>
<table>
<tr><th>Humidity</th><td>{{if .Sensed}}{{.State.Humidity}}%{{else}}<span class="unknown">no reading yet</span>{{end}}{{if and .Sensed (not .SensorOK)}} <span class="unknown">(sensor error)</span>{{end}}</td></tr>
<tr><th>Pump</th><td class="{{if .State.PumpOn}}on{{else}}off{{end}}">{{.State.Pump}}</td></tr>
<tr><th>Mode</th><td>{{if .State.Mode}}{{.State.Mode}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Threshold</th><td>{{.State.Threshold}}% (off above {{.ReleasePoint}}%)</td></tr>
{{if .AutoReleaseDisabled}}<tr><th>Warning</th><td class="warning">automatic watering cannot stop on its own at this threshold</td></tr>{{end}}
<tr><th>Last watering</th><td>{{relative .LastActivation .Now}}</td></tr>
{{if .NextActivation.After .Now}}<tr><th>Next allowed</th><td>{{relative .NextActivation .Now}}</td></tr>{{end}}
</table>

<h2>Control</h2>
<p>
<form method="post" action="/api/mode/AUTO"><button>Auto</button></form>
<form method="post" action="/api/mode/MANUAL"><button>Manual</button></form>
<form method="post" action="/api/pump/ON"><button>Pump on</button></form>
<form method="post" action="/api/pump/OFF"><button>Pump off</button></form>
</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.TopicPrefix}}/#</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Pump ON</th><td>{{.Counts.PumpOn}}</td></tr>
<tr><th>Pump OFF</th><td>{{.Counts.PumpOff}}</td></tr>
<tr><th>Button presses</th><td>{{.Counts.ButtonPresses}}</td></tr>
<tr><th>Remote commands</th><td>{{.Counts.RemoteCommands}}</td></tr>
<tr><th>Deferred</th><td>{{.Counts.Deferred}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .StartTime .Now}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample period</th><td>{{.Config.SamplePeriodMs}}ms</td></tr>
<tr><th>Minimum interval</th><td>{{.Config.MinimumIntervalMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	indexTmpl.Execute(w, snap)
}
