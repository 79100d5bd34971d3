package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string                   `json:"event,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
	Ready         bool                     `json:"ready"`
	Ticks         uint64                   `json:"ticks"`
	LastTick      string                   `json:"last_tick,omitempty"`
	Sources       int                      `json:"sources"`
	Metrics       map[string]logic.Reading `json:"metrics"`
	Inputs        map[string]bool          `json:"inputs,omitempty"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
	StartTime     string                   `json:"start_time"`
	Timestamp     string                   `json:"timestamp"`
	MQTT          MQTTStatus               `json:"mqtt"`
	Network       *NetworkJSON             `json:"network,omitempty"`
	Config        ConfigJSON               `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
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
	PeriodMs    int64  `json:"period_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TagPrefix   string `json:"tag_prefix"`
	Source      string `json:"source"`
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready(),
		Ticks:         snap.Ticks,
		Sources:       snap.Sources,
		Metrics:       snap.Metrics.Flat(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PeriodMs:    snap.Config.PeriodMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TagPrefix:   snap.Config.TagPrefix,
			Source:      snap.Config.Source,
			MetricsAddr: snap.Config.MetricsAddr,
		},
	}
	if len(snap.Inputs) > 0 {
		inner.Inputs = snap.Inputs
	}
	if !snap.LastTick.IsZero() {
		inner.LastTick = snap.LastTick.UTC().Format(time.RFC3339)
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

// FormatJSON returns the indented JSON status (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
