// Package logic contains the per-tick tag aggregation for the pump, solar,
// tank and skid subsystems.
// This package has NO external dependencies (no MQTT, HTTP, GPIO or clock).
// Tag values are always injected through a TagReader.
package logic

import (
	"encoding/json"
	"strconv"
)

// Reading is an optional tag value: a number, a string, or absent.
// The zero Reading is absent.
type Reading struct {
	present bool
	text    bool
	num     float64
	str     string
}

// Absent is the reading returned for a missing tag or unconfigured source.
var Absent = Reading{}

// Number returns a present numeric reading.
func Number(v float64) Reading {
	return Reading{present: true, num: v}
}

// Text returns a present string reading.
func Text(s string) Reading {
	return Reading{present: true, text: true, str: s}
}

// Present reports whether the reading holds a value.
func (r Reading) Present() bool {
	return r.present
}

// Float returns the numeric value. ok is false for absent and string readings.
func (r Reading) Float() (v float64, ok bool) {
	if !r.present || r.text {
		return 0, false
	}
	return r.num, true
}

// IsText reports whether the reading holds a string.
func (r Reading) IsText() bool {
	return r.present && r.text
}

// String formats the reading for display. Absent readings render as "".
func (r Reading) String() string {
	switch {
	case !r.present:
		return ""
	case r.text:
		return r.str
	default:
		return strconv.FormatFloat(r.num, 'f', -1, 64)
	}
}

// MarshalJSON encodes numbers as JSON numbers, strings as strings and
// absent readings as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	switch {
	case !r.present:
		return []byte("null"), nil
	case r.text:
		return json.Marshal(r.str)
	default:
		return json.Marshal(r.num)
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Booleans decode as 1 or 0.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = FromAny(v)
	return nil
}

// FromAny converts a decoded JSON value into a Reading.
// Unsupported types (objects, arrays, null) yield Absent.
func FromAny(v any) Reading {
	switch t := v.(type) {
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return Text(t)
	case bool:
		if t {
			return Number(1)
		}
		return Number(0)
	default:
		return Absent
	}
}

// TagReader looks up a named tag on a source.
// Implementations must not block; a missing tag returns Absent.
type TagReader interface {
	Tag(name string, src SourceRef) Reading
}

// Tag names read from device sources.
const (
	TagTargetRate  = "TargetRate"
	TagFlowRate    = "FlowRate"
	TagStateString = "StateString"

	TagBatteryVoltage = "b_voltage"
	TagBatteryPercent = "b_percent"
	TagPanelPower     = "panel_power"
	TagRemainingAh    = "remaining_ah"

	TagLevelReading          = "level_reading"
	TagLevelFilledPercentage = "level_filled_percentage"

	TagValue = "value"
)

// PumpData is the per-pump bundle pushed to the dashboard.
type PumpData struct {
	TargetRate Reading `json:"target_rate"`
	FlowRate   Reading `json:"flow_rate"`
	State      Reading `json:"pump_state"`
}

// SolarData is the aggregate over all solar controllers.
// PanelPower is published to the dashboard as "array_voltage".
type SolarData struct {
	BatteryVoltage    float64 `json:"battery_voltage"`
	BatteryPercentage float64 `json:"battery_percentage"`
	PanelPower        float64 `json:"panel_power"`
	BatteryAh         float64 `json:"battery_ah"`
}

// TankData holds the tank level in millimetres and percent filled.
type TankData struct {
	LevelMM      Reading `json:"tank_level_mm"`
	LevelPercent Reading `json:"tank_level_percent"`
}

// SkidData holds the skid flow and pressure sensor values.
type SkidData struct {
	Flow     Reading `json:"skid_flow"`
	Pressure Reading `json:"skid_pressure"`
}

// Metrics is the complete result of one tick.
type Metrics struct {
	Pump  PumpData
	Pump2 PumpData
	Solar SolarData
	Tank  TankData
	Skid  SkidData
}

// Flat returns the aggregated metric set keyed by metric name.
// The secondary pump is not part of the flat set.
func (m Metrics) Flat() map[string]Reading {
	return map[string]Reading{
		"target_rate":        m.Pump.TargetRate,
		"flow_rate":          m.Pump.FlowRate,
		"pump_state":         m.Pump.State,
		"battery_voltage":    Number(m.Solar.BatteryVoltage),
		"battery_percentage": Number(m.Solar.BatteryPercentage),
		"panel_power":        Number(m.Solar.PanelPower),
		"battery_ah":         Number(m.Solar.BatteryAh),
		"tank_level_mm":      m.Tank.LevelMM,
		"tank_level_percent": m.Tank.LevelPercent,
		"skid_flow":          m.Skid.Flow,
		"skid_pressure":      m.Skid.Pressure,
	}
}
