// Package status provides a thread-safe status tracker for the control daemon.
// It is read by lifecycle events and the metrics endpoint.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
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
	PeriodMs    int64
	HeartbeatMs int64
	Broker      string
	TagPrefix   string
	Source      string
	MetricsAddr string // empty = disabled
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Ticks         uint64
	LastTick      time.Time
	Metrics       logic.Metrics
	Inputs        map[string]bool
	Sources       int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether at least one tick has completed.
func (s Snapshot) Ready() bool {
	return s.Ticks > 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordTick stores the result of one tick.
// Called from runLoop on every tick.
func (t *Tracker) RecordTick(at time.Time, m logic.Metrics, inputs map[string]bool, sources int) {
	in := make(map[string]bool, len(inputs))
	for k, v := range inputs {
		in[k] = v
	}

	t.mu.Lock()
	t.snap.Ticks++
	t.snap.LastTick = at
	t.snap.Metrics = m
	t.snap.Inputs = in
	t.snap.Sources = sources
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
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
	s.Now = time.Now()
	return s
}
