package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/relay-analyzer/internal/status"
	"github.com/sweeney/relay-analyzer/internal/waveform"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"ms": func(seconds float64) string {
		return fmt.Sprintf("%.3f ms", seconds*1000)
	},
	"transitionTime": func(r waveform.Result) string {
		if !r.TransitionTimeValid {
			return "not computed"
		}
		return fmt.Sprintf("%.3f ms", r.TransitionTime*1000)
	},
	"connClass": func(ok bool) string {
		if ok {
			return "connected"
		}
		return "disconnected"
	},
	"connText": func(ok bool) string {
		if ok {
			return "CONNECTED"
		}
		return "DISCONNECTED"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Relay Analyzer</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
h2 { font-size: 1.1em; margin-top: 1.5em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
.bounced { color: orange; font-weight: bold; }
.clean { color: green; }
</style>
</head>
<body>
<h1>Relay Analyzer</h1>

<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Analyzed</th><td>{{.Counts.Analyzed}} ({{.Counts.Rising}} rising, {{.Counts.Falling}} falling)</td></tr>
<tr><th>Bounced</th><td{{if gt .Counts.Bounced 0}} class="bounced"{{end}}>{{.Counts.Bounced}}</td></tr>
<tr><th>Partial</th><td>{{.Counts.Partial}}</td></tr>
<tr><th>Invalid</th><td>{{.Counts.Invalid}}</td></tr>
<tr><th>MQTT</th><td class="{{connClass .MQTTConnected}}">{{connText .MQTTConnected}} ({{.Config.Broker}})</td></tr>
{{if .Config.ScopeAddr}}<tr><th>Scope</th><td class="{{connClass .ScopeReady}}">{{connText .ScopeReady}} ({{.Config.ScopeAddr}})</td></tr>{{end}}
</table>

{{if .LastRising}}
<h2>Last rising transition</h2>
<table>
<tr><th>Source</th><td>{{.LastRising.Source}}</td></tr>
<tr><th>Transition time</th><td>{{transitionTime .LastRising.Result}}</td></tr>
<tr><th>Bounces</th><td{{if gt .LastRising.Result.BounceCount 0}} class="bounced"{{else}} class="clean"{{end}}>{{.LastRising.Result.BounceCount}}</td></tr>
<tr><th>Bounce duration</th><td>{{ms .LastRising.Result.BounceDuration}}</td></tr>
<tr><th>Swing</th><td>{{printf "%.3f" .LastRising.Result.StartVoltage}} V &rarr; {{printf "%.3f" .LastRising.Result.EndVoltage}} V</td></tr>
</table>
{{end}}

{{if .LastFalling}}
<h2>Last falling transition</h2>
<table>
<tr><th>Source</th><td>{{.LastFalling.Source}}</td></tr>
<tr><th>Transition time</th><td>{{transitionTime .LastFalling.Result}}</td></tr>
<tr><th>Bounces</th><td{{if gt .LastFalling.Result.BounceCount 0}} class="bounced"{{else}} class="clean"{{end}}>{{.LastFalling.Result.BounceCount}}</td></tr>
<tr><th>Bounce duration</th><td>{{ms .LastFalling.Result.BounceDuration}}</td></tr>
<tr><th>Swing</th><td>{{printf "%.3f" .LastFalling.Result.StartVoltage}} V &rarr; {{printf "%.3f" .LastFalling.Result.EndVoltage}} V</td></tr>
</table>
{{end}}

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Template errors here mean a bug, not a runtime condition worth 500s;
	// the page is best-effort.
	_ = indexTmpl.Execute(w, snap)
}
