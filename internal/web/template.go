package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/water-guard/internal/battery"
	"github.com/sweeney/water-guard/internal/meter"
	"github.com/sweeney/water-guard/internal/mqtt"
	"github.com/sweeney/water-guard/internal/netmon"
	"github.com/sweeney/water-guard/internal/stats"
	"github.com/sweeney/water-guard/internal/valve"
)

// snapshot is one coherent read of every published container, driving
// both the HTML page and /state.json.
type snapshot struct {
	Valve   valve.State
	Meter   meter.State
	Stats   stats.State
	Battery battery.State
	Conn    netmon.State
}

// StateJSON is the /state.json document.
type StateJSON struct {
	Valve   json.RawMessage `json:"valve"`
	Meter   json.RawMessage `json:"meter"`
	Stats   json.RawMessage `json:"stats"`
	Battery json.RawMessage `json:"battery"`
	Conn    ConnPayload     `json:"conn"`
	Now     string          `json:"timestamp"`
}

func formatJSON(snap snapshot) []byte {
	valveData, _ := mqtt.FormatValve(snap.Valve)
	meterData, _ := mqtt.FormatMeter(snap.Meter)
	statsData, _ := mqtt.FormatStats(snap.Stats)
	batteryData, _ := mqtt.FormatBattery(snap.Battery)

	doc := StateJSON{
		Valve:   valveData,
		Meter:   meterData,
		Stats:   statsData,
		Battery: batteryData,
		Conn:    ConnPayload{NetUp: snap.Conn.NetUp, BrokerUp: snap.Conn.BrokerUp},
		Now:     time.Now().UTC().Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(doc, "", "  ")
	return data
}

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"onoff": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"millivolts": func(s battery.State) string {
		if !s.Known {
			return "unknown"
		}
		return fmt.Sprintf("%d.%03d V", s.Voltage/1000, s.Voltage%1000)
	},
	"window": func(d time.Duration) string {
		if d >= 24*time.Hour {
			return fmt.Sprintf("%dd", int(d.Hours())/24)
		}
		if d >= time.Hour {
			return fmt.Sprintf("%dh", int(d.Hours()))
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Water Guard</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.warn { color: orange; font-weight: bold; }
.alert { color: red; font-weight: bold; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>Water Guard</h1>

<h2>Valve</h2>
<table>
<tr><th>State</th><td class="{{if .Valve.Settled}}ok{{else}}warn{{end}}">{{.Valve}}</td></tr>
</table>

<h2>Water Meter</h2>
<table>
<tr><th>Edges</th><td>{{.Meter.EdgesCount}}</td></tr>
<tr><th>Armed</th><td>{{onoff .Meter.Armed}}</td></tr>
<tr><th>Leaking</th><td class="{{if .Meter.Leaking}}alert{{else}}muted{{end}}">{{onoff .Meter.Leaking}}</td></tr>
</table>

<h2>Flow Windows</h2>
<table>
<tr><th>Window</th><th>Edges</th></tr>
{{range .Windows}}<tr><td>{{window .Duration}}</td><td>{{if .Have}}{{.Edges}}{{else}}<span class="muted">pending</span>{{end}}</td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Battery</th><td>{{millivolts .Battery}}</td></tr>
<tr><th>External power</th><td>{{onoff .Battery.Powered}}</td></tr>
<tr><th>Network</th><td class="{{if .Conn.NetUp}}ok{{else}}alert{{end}}">{{onoff .Conn.NetUp}}</td></tr>
<tr><th>Broker</th><td class="{{if .Conn.BrokerUp}}ok{{else}}alert{{end}}">{{onoff .Conn.BrokerUp}}</td></tr>
</table>

<p><a href="/state.json">JSON</a></p>
</body>
</html>
`

// windowRow is one rendered statistics window.
type windowRow struct {
	Duration time.Duration
	Have     bool
	Edges    uint64
}

func renderHTML(w io.Writer, snap snapshot) {
	data := struct {
		snapshot
		Windows []windowRow
	}{snapshot: snap}

	for i, m := range snap.Stats.Measurements {
		row := windowRow{Duration: stats.Durations[i]}
		if !m.IsZero() {
			row.Have = true
			row.Edges = m.End.EdgesCount - m.Start.EdgesCount
		}
		data.Windows = append(data.Windows, row)
	}

	indexTmpl.Execute(w, data)
}
