package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sia-local-control/internal/logic"
)

func metricsWithAh(ah float64) logic.Metrics {
	return logic.Metrics{
		Pump:  logic.PumpData{TargetRate: logic.Number(15.5), State: logic.Text("auto")},
		Solar: logic.SolarData{BatteryAh: ah},
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PeriodMs: 1000, Broker: "tcp://localhost:1883", Source: "sia_local_control"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PeriodMs != 1000 {
		t.Errorf("Config.PeriodMs: got %d, want 1000", snap.Config.PeriodMs)
	}
	if snap.Ready() {
		t.Error("expected Ready=false before the first tick")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordTick(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)

	tr.RecordTick(at, metricsWithAh(120), map[string]bool{"pump_run": true}, 4)
	tr.RecordTick(at.Add(time.Second), metricsWithAh(90), nil, 5)

	snap := tr.Snapshot()
	if snap.Ticks != 2 {
		t.Errorf("Ticks: got %d, want 2", snap.Ticks)
	}
	if !snap.LastTick.Equal(at.Add(time.Second)) {
		t.Errorf("LastTick: got %v", snap.LastTick)
	}
	if snap.Metrics.Solar.BatteryAh != 90 {
		t.Errorf("BatteryAh: got %v, want 90", snap.Metrics.Solar.BatteryAh)
	}
	if snap.Sources != 5 {
		t.Errorf("Sources: got %d, want 5", snap.Sources)
	}
	if !snap.Ready() {
		t.Error("expected Ready=true after a tick")
	}
}

func TestRecordTickCopiesInputs(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	inputs := map[string]bool{"pump_run": true}

	tr.RecordTick(time.Now(), logic.Metrics{}, inputs, 0)
	inputs["pump_run"] = false

	if !tr.Snapshot().Inputs["pump_run"] {
		t.Error("tracker should keep its own copy of inputs")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})
	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Ticks:         3,
		LastTick:      start.Add(3 * time.Second),
		Metrics:       metricsWithAh(120),
		Sources:       4,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PeriodMs: 1000, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", Source: "sia_local_control"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if !parsed.Status.Ready {
		t.Error("expected Ready=true")
	}
	if parsed.Status.Ticks != 3 {
		t.Errorf("Ticks: got %d, want 3", parsed.Status.Ticks)
	}
	if parsed.Status.LastTick != "2026-01-01T00:00:03Z" {
		t.Errorf("LastTick: got %q", parsed.Status.LastTick)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.Metrics["battery_ah"] != logic.Number(120) {
		t.Errorf("metrics.battery_ah: got %v", parsed.Status.Metrics["battery_ah"])
	}
	if parsed.Status.Metrics["pump_state"] != logic.Text("auto") {
		t.Errorf("metrics.pump_state: got %v", parsed.Status.Metrics["pump_state"])
	}
	if len(parsed.Status.Metrics) != 11 {
		t.Errorf("expected 11 metrics, got %d", len(parsed.Status.Metrics))
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Config.Source != "sia_local_control" {
		t.Errorf("Config.Source: got %q", parsed.Status.Config.Source)
	}
	if parsed.Status.Event != "" || parsed.Status.Reason != "" {
		t.Error("expected empty Event/Reason for plain status")
	}
}

func TestFormatJSONBeforeFirstTick(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]map[string]any
	json.Unmarshal(FormatJSON(snap), &raw)

	if _, exists := raw["status"]["last_tick"]; exists {
		t.Error("last_tick should be omitted before the first tick")
	}
	if raw["status"]["ready"] != false {
		t.Errorf("ready: got %v, want false", raw["status"]["ready"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Ticks:     10,
		Inputs:    map[string]bool{"pump_run": true},
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if !parsed.Status.Inputs["pump_run"] {
		t.Error("expected inputs.pump_run=true")
	}
	if parsed.Status.Network == nil || parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network: got %+v", parsed.Status.Network)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]map[string]any
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)

	if _, exists := raw["status"]["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if raw["status"]["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", raw["status"]["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.RecordTick(time.Now(), metricsWithAh(float64(i)), map[string]bool{"a": i%2 == 0}, i)
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
