// Package dashboard defines the sink the UI loop pushes tag values into and
// the Board that holds the values shown on the local web dashboard.
package dashboard

import (
	"sync"
	"time"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// Sink receives one call per widget group on every tick.
type Sink interface {
	UpdatePumpData(targetRate, flowRate, pumpState logic.Reading)
	UpdatePump2Data(targetRate, flowRate, pumpState logic.Reading)
	UpdateSolarData(batteryVoltage, batteryPercentage, arrayVoltage, batteryAh float64)
	UpdateTankData(tankLevelMM, tankLevelPercent logic.Reading)
	UpdateSkidData(skidFlow, skidPressure logic.Reading)
}

// Dispatch pushes every group of m to s. All five groups are sent on every
// call whether or not anything changed.
func Dispatch(s Sink, m logic.Metrics) {
	s.UpdatePumpData(m.Pump.TargetRate, m.Pump.FlowRate, m.Pump.State)
	s.UpdatePump2Data(m.Pump2.TargetRate, m.Pump2.FlowRate, m.Pump2.State)
	// panel power is shown under the array_voltage widget
	s.UpdateSolarData(m.Solar.BatteryVoltage, m.Solar.BatteryPercentage, m.Solar.PanelPower, m.Solar.BatteryAh)
	s.UpdateTankData(m.Tank.LevelMM, m.Tank.LevelPercent)
	s.UpdateSkidData(m.Skid.Flow, m.Skid.Pressure)
}

// Widget group names.
const (
	GroupPump  = "pump"
	GroupPump2 = "pump2"
	GroupSolar = "solar"
	GroupTank  = "tank"
	GroupSkid  = "skid"
)

// Pump is the pump widget group.
type Pump struct {
	TargetRate logic.Reading `json:"target_rate"`
	FlowRate   logic.Reading `json:"flow_rate"`
	PumpState  logic.Reading `json:"pump_state"`
}

// Solar is the solar widget group.
type Solar struct {
	BatteryVoltage    float64 `json:"battery_voltage"`
	BatteryPercentage float64 `json:"battery_percentage"`
	ArrayVoltage      float64 `json:"array_voltage"`
	BatteryAh         float64 `json:"battery_ah"`
}

// Tank is the tank widget group.
type Tank struct {
	TankLevelMM      logic.Reading `json:"tank_level_mm"`
	TankLevelPercent logic.Reading `json:"tank_level_percent"`
}

// Skid is the skid widget group.
type Skid struct {
	SkidFlow     logic.Reading `json:"skid_flow"`
	SkidPressure logic.Reading `json:"skid_pressure"`
}

// Update is a single group update as sent to live clients.
type Update struct {
	Group string `json:"group"`
	Data  any    `json:"data"`
}

// State is a point-in-time copy of the board.
// It is a value type and safe to use after the lock is released.
type State struct {
	Pump      Pump
	Pump2     Pump
	Solar     Solar
	Tank      Tank
	Skid      Skid
	Updates   uint64
	UpdatedAt time.Time
	StartTime time.Time
	Now       time.Time
}

// Uptime returns the duration since the dashboard started.
func (s State) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Board holds the latest value of every widget group behind an RWMutex and
// implements Sink. Listeners are called after every update, outside the lock.
type Board struct {
	now func() time.Time

	mu        sync.RWMutex
	state     State
	listeners []func(Update)
}

// NewBoard creates a Board. now is used for timestamps; nil means time.Now.
func NewBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{
		now:   now,
		state: State{StartTime: now()},
	}
}

// Subscribe registers fn to be called with every group update.
func (b *Board) Subscribe(fn func(Update)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// UpdatePumpData sets the primary pump group.
func (b *Board) UpdatePumpData(targetRate, flowRate, pumpState logic.Reading) {
	p := Pump{TargetRate: targetRate, FlowRate: flowRate, PumpState: pumpState}
	b.apply(GroupPump, p, func(s *State) { s.Pump = p })
}

// UpdatePump2Data sets the secondary pump group.
func (b *Board) UpdatePump2Data(targetRate, flowRate, pumpState logic.Reading) {
	p := Pump{TargetRate: targetRate, FlowRate: flowRate, PumpState: pumpState}
	b.apply(GroupPump2, p, func(s *State) { s.Pump2 = p })
}

// UpdateSolarData sets the solar group.
func (b *Board) UpdateSolarData(batteryVoltage, batteryPercentage, arrayVoltage, batteryAh float64) {
	v := Solar{
		BatteryVoltage:    batteryVoltage,
		BatteryPercentage: batteryPercentage,
		ArrayVoltage:      arrayVoltage,
		BatteryAh:         batteryAh,
	}
	b.apply(GroupSolar, v, func(s *State) { s.Solar = v })
}

// UpdateTankData sets the tank group.
func (b *Board) UpdateTankData(tankLevelMM, tankLevelPercent logic.Reading) {
	v := Tank{TankLevelMM: tankLevelMM, TankLevelPercent: tankLevelPercent}
	b.apply(GroupTank, v, func(s *State) { s.Tank = v })
}

// UpdateSkidData sets the skid group.
func (b *Board) UpdateSkidData(skidFlow, skidPressure logic.Reading) {
	v := Skid{SkidFlow: skidFlow, SkidPressure: skidPressure}
	b.apply(GroupSkid, v, func(s *State) { s.Skid = v })
}

func (b *Board) apply(group string, data any, set func(*State)) {
	b.mu.Lock()
	set(&b.state)
	b.state.Updates++
	b.state.UpdatedAt = b.now()
	listeners := b.listeners
	b.mu.Unlock()

	u := Update{Group: group, Data: data}
	for _, fn := range listeners {
		fn(u)
	}
}

// State returns a copy of the board. Now is set at the moment of the call.
func (b *Board) State() State {
	b.mu.RLock()
	s := b.state
	b.mu.RUnlock()
	s.Now = b.now()
	return s
}

// Groups returns the current value of every group keyed by group name.
func (s State) Groups() map[string]any {
	return map[string]any{
		GroupPump:  s.Pump,
		GroupPump2: s.Pump2,
		GroupSolar: s.Solar,
		GroupTank:  s.Tank,
		GroupSkid:  s.Skid,
	}
}
