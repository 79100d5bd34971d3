package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/sweeney/sia-local-control/internal/dashboard"
	"github.com/sweeney/sia-local-control/internal/logic"
	"github.com/sweeney/sia-local-control/internal/status"
)

var funcs = template.FuncMap{
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
	"reading": func(r logic.Reading) string {
		if !r.Present() {
			return "n/a"
		}
		return r.String()
	},
	"num": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"sortedKeys": func(m map[string]logic.Reading) []string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	},
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(funcs).Parse(dashboardHTML))

var statusTmpl = template.Must(template.New("status").Funcs(funcs).Parse(statusHTML))

const style = `<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>`

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>SIA Local Control</title>
` + style + `
</head>
<body>
<h1>SIA Local Control<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Pump</h2>
<table>
<tr><th>Target rate</th><td data-group="pump" data-key="target_rate">{{reading .Pump.TargetRate}}</td></tr>
<tr><th>Flow rate</th><td data-group="pump" data-key="flow_rate">{{reading .Pump.FlowRate}}</td></tr>
<tr><th>State</th><td data-group="pump" data-key="pump_state">{{reading .Pump.PumpState}}</td></tr>
</table>

<h2>Pump 2</h2>
<table>
<tr><th>Target rate</th><td data-group="pump2" data-key="target_rate">{{reading .Pump2.TargetRate}}</td></tr>
<tr><th>Flow rate</th><td data-group="pump2" data-key="flow_rate">{{reading .Pump2.FlowRate}}</td></tr>
<tr><th>State</th><td data-group="pump2" data-key="pump_state">{{reading .Pump2.PumpState}}</td></tr>
</table>

<h2>Solar</h2>
<table>
<tr><th>Battery voltage</th><td data-group="solar" data-key="battery_voltage">{{num .Solar.BatteryVoltage}}</td></tr>
<tr><th>Battery charge</th><td data-group="solar" data-key="battery_percentage">{{num .Solar.BatteryPercentage}}</td></tr>
<tr><th>Panel power</th><td data-group="solar" data-key="array_voltage">{{num .Solar.ArrayVoltage}}</td></tr>
<tr><th>Battery Ah</th><td data-group="solar" data-key="battery_ah">{{num .Solar.BatteryAh}}</td></tr>
</table>

<h2>Tank</h2>
<table>
<tr><th>Level (mm)</th><td data-group="tank" data-key="tank_level_mm">{{reading .Tank.TankLevelMM}}</td></tr>
<tr><th>Level (%)</th><td data-group="tank" data-key="tank_level_percent">{{reading .Tank.TankLevelPercent}}</td></tr>
</table>

<h2>Skid</h2>
<table>
<tr><th>Flow</th><td data-group="skid" data-key="skid_flow">{{reading .Skid.SkidFlow}}</td></tr>
<tr><th>Pressure</th><td data-group="skid" data-key="skid_pressure">{{reading .Skid.SkidPressure}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Updates</th><td>{{.Updates}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function show(v) {
    if (v === null || v === undefined) return "n/a";
    if (typeof v === "number" && !Number.isInteger(v)) return v.toFixed(1);
    return String(v);
  }

  function setGroup(group, data) {
    Object.keys(data).forEach(function(key) {
      var el = document.querySelector('[data-group="' + group + '"][data-key="' + key + '"]');
      if (el) el.textContent = show(data[key]);
    });
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var msg = JSON.parse(ev.data);
        if (msg.type === "update") {
          setGroup(msg.payload.group, msg.payload.data);
        } else if (msg.type === "snapshot") {
          ["pump", "pump2", "solar", "tank", "skid"].forEach(function(g) {
            setGroup(g, msg.payload[g]);
          });
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

const statusHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>SIA Local Control Status</title>
` + style + `
</head>
<body>
<h1>SIA Local Control</h1>

<h2>Aggregate</h2>
<table>
{{$m := .Metrics.Flat}}{{range sortedKeys $m}}<tr><th>{{.}}</th><td>{{reading (index $m .)}}</td></tr>
{{end}}</table>
{{if .Inputs}}
<h2>Inputs</h2>
<table>
{{range $name, $on := .Inputs}}<tr><th>{{$name}}</th><td>{{if $on}}1{{else}}0{{end}}</td></tr>
{{end}}</table>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Tag sources</th><td>{{.Sources}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Period</th><td>{{.Config.PeriodMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Publishing as</th><td>{{.Config.TagPrefix}}/{{.Config.Source}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderDashboard(w io.Writer, s dashboard.State) error {
	// State has an Uptime() method but the template needs a Duration field.
	data := struct {
		dashboard.State
		Uptime time.Duration
	}{
		State:  s,
		Uptime: s.Uptime(),
	}
	return dashboardTmpl.Execute(w, data)
}

func renderStatus(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return statusTmpl.Execute(w, data)
}
