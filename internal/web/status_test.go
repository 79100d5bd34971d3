package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/sia-local-control/internal/logic"
	"github.com/sweeney/sia-local-control/internal/status"
)

func newStatusServer(t *testing.T, metrics http.Handler) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		PeriodMs:    1000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		TagPrefix:   "sia/tags",
		Source:      "sia_local_control",
		MetricsAddr: ":9102",
	}
	tr := status.NewTracker(start, cfg)
	srv := NewStatus(":0", tr, metrics)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func TestStatusJSONEndpoint(t *testing.T) {
	ts, tr := newStatusServer(t, nil)
	tr.RecordTick(start.Add(time.Second), sampleMetrics(), map[string]bool{"pump_run": true}, 6)
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal([]byte(body), &sj))
	assert.True(t, sj.Status.Ready)
	assert.Equal(t, uint64(1), sj.Status.Ticks)
	assert.Equal(t, 6, sj.Status.Sources)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, logic.Text("auto"), sj.Status.Metrics["pump_state"])
	assert.True(t, sj.Status.Inputs["pump_run"])
	assert.Equal(t, int64(1000), sj.Status.Config.PeriodMs)
}

func TestStatusHTML(t *testing.T) {
	ts, tr := newStatusServer(t, nil)
	tr.RecordTick(start.Add(time.Second), sampleMetrics(), map[string]bool{"pump_run": false}, 3)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<th>battery_ah</th><td>120</td>")
	assert.Contains(t, body, "<th>skid_flow</th><td>n/a</td>")
	assert.Contains(t, body, "<th>pump_run</th><td>0</td>")
	assert.Contains(t, body, "sia/tags/sia_local_control")
	assert.Contains(t, body, "disconnected")
}

func TestStatusMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("sia_ticks_total 1\n"))
	})
	ts, _ := newStatusServer(t, metrics)

	resp, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "sia_ticks_total 1")
}

func TestStatusWithoutMetrics(t *testing.T) {
	ts, _ := newStatusServer(t, nil)

	resp, _ := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
