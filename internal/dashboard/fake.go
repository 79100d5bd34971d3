package dashboard

import "github.com/sweeney/sia-local-control/internal/logic"

// Call is one recorded Sink call.
type Call struct {
	Group string
	Args  []any
}

// RecordingSink records every Sink call for test assertions.
type RecordingSink struct {
	Calls []Call
}

func (r *RecordingSink) record(group string, args ...any) {
	r.Calls = append(r.Calls, Call{Group: group, Args: args})
}

// UpdatePumpData records the call.
func (r *RecordingSink) UpdatePumpData(targetRate, flowRate, pumpState logic.Reading) {
	r.record(GroupPump, targetRate, flowRate, pumpState)
}

// UpdatePump2Data records the call.
func (r *RecordingSink) UpdatePump2Data(targetRate, flowRate, pumpState logic.Reading) {
	r.record(GroupPump2, targetRate, flowRate, pumpState)
}

// UpdateSolarData records the call.
func (r *RecordingSink) UpdateSolarData(batteryVoltage, batteryPercentage, arrayVoltage, batteryAh float64) {
	r.record(GroupSolar, batteryVoltage, batteryPercentage, arrayVoltage, batteryAh)
}

// UpdateTankData records the call.
func (r *RecordingSink) UpdateTankData(tankLevelMM, tankLevelPercent logic.Reading) {
	r.record(GroupTank, tankLevelMM, tankLevelPercent)
}

// UpdateSkidData records the call.
func (r *RecordingSink) UpdateSkidData(skidFlow, skidPressure logic.Reading) {
	r.record(GroupSkid, skidFlow, skidPressure)
}

// Groups returns the group names in call order.
func (r *RecordingSink) Groups() []string {
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Group
	}
	return out
}

// Reset clears recorded calls.
func (r *RecordingSink) Reset() {
	r.Calls = nil
}
