// Package mqtt carries tag values between the device simulators, the
// aggregator and the dashboard, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// DefaultTagPrefix is the topic prefix under which every source publishes
// its tags as a JSON object: <prefix>/<source>.
const DefaultTagPrefix = "sia/tags"

// TagTopic returns the topic carrying the tags of src.
func TagTopic(prefix string, src logic.SourceRef) string {
	return prefix + "/" + string(src)
}

// TagFilter returns the subscription filter matching every source's tag topic.
func TagFilter(prefix string) string {
	return prefix + "/+"
}

// SystemTopic returns the lifecycle topic for src. It sits one level below
// the tag topic so TagFilter does not match it.
func SystemTopic(prefix string, src logic.SourceRef) string {
	return TagTopic(prefix, src) + "/system"
}

// SourceFromTopic extracts the source from a tag topic.
func SourceFromTopic(prefix, topic string) (logic.SourceRef, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("topic %q is not a tag topic under %q", topic, prefix)
	}
	return logic.SourceRef(rest), nil
}

// Publisher publishes aggregated metrics and lifecycle events.
type Publisher interface {
	// PublishMetrics sends one tick's aggregate.
	// Returns error if publishing fails (should not crash the process).
	PublishMetrics(msg MetricsMessage) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TagSink receives raw tag payloads for a source.
type TagSink interface {
	Apply(src logic.SourceRef, payload []byte) error
}

// MetricsMessage is one tick's aggregate as published by the control app.
type MetricsMessage struct {
	Timestamp time.Time
	Metrics   logic.Metrics
	Inputs    map[string]bool // local digital inputs, may be nil
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// InputTagPrefix prefixes local digital inputs in the metrics payload.
const InputTagPrefix = "input_"

// FormatMetricsPayload creates the flat JSON object for an aggregate.
// The object uses the same shape as any other tag source, so the aggregate
// can be read back through a tag registry. Digital inputs are encoded as
// input_<name> = 1 or 0.
func FormatMetricsPayload(msg MetricsMessage) ([]byte, error) {
	flat := msg.Metrics.Flat()
	payload := make(map[string]any, len(flat)+len(msg.Inputs)+1)
	for k, v := range flat {
		payload[k] = v
	}

	names := make([]string, 0, len(msg.Inputs))
	for name := range msg.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := 0
		if msg.Inputs[name] {
			v = 1
		}
		payload[InputTagPrefix+name] = v
	}

	payload["timestamp"] = msg.Timestamp.UTC().Format(time.RFC3339)
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// HandleTagMessage routes one tag message into sink.
func HandleTagMessage(sink TagSink, prefix, topic string, payload []byte) error {
	src, err := SourceFromTopic(prefix, topic)
	if err != nil {
		return err
	}
	return sink.Apply(src, payload)
}
