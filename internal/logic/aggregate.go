package logic

// Fallbacks used when a category has no configured source at all.
const (
	FallbackTargetRate = 15.5
	FallbackFlowRate   = 14.2
	FallbackPumpState  = "auto"

	// Placeholder shown for every field of an unconfigured secondary pump.
	Placeholder = "-"

	FallbackBatteryVoltage    = 24.5
	FallbackBatteryPercentage = 78.0
	FallbackPanelPower        = 150.0
	FallbackBatteryAh         = 120.0

	// FallbackTankLevel is substituted before the metres to millimetres
	// conversion, so the published level is FallbackTankLevel*1000.
	// TODO: confirm with the site owner whether this constant was meant to
	// be millimetres already.
	FallbackTankLevel        = 1250.0
	FallbackTankLevelPercent = 62.5

	metresToMillimetres = 1000
)

// Compute runs one tick over all categories.
func Compute(r TagReader, src Sources) Metrics {
	pump, pump2 := SelectPumps(r, src.Pumps)
	return Metrics{
		Pump:  pump,
		Pump2: pump2,
		Solar: AggregateSolar(r, src.Solar),
		Tank:  ReadTank(r, src.Tank),
		Skid:  ReadSkid(r, src.Flow, src.Pressure),
	}
}

// SelectPumps returns the primary (index 0) and secondary (index 1) pump
// bundles. Sources beyond index 1 are ignored. Tags missing on a configured
// source are passed through as Absent.
func SelectPumps(r TagReader, pumps SourceList) (primary, secondary PumpData) {
	secondary = placeholderPump()

	switch pumps.Kind() {
	case ListEmpty:
		primary = PumpData{
			TargetRate: Number(FallbackTargetRate),
			FlowRate:   Number(FallbackFlowRate),
			State:      Text(FallbackPumpState),
		}
	case ListOne:
		src, _ := pumps.At(0)
		primary = readPump(r, src)
	case ListMany:
		src, _ := pumps.At(0)
		primary = readPump(r, src)
		src, _ = pumps.At(1)
		secondary = readPump(r, src)
	}
	return primary, secondary
}

func readPump(r TagReader, src SourceRef) PumpData {
	return PumpData{
		TargetRate: r.Tag(TagTargetRate, src),
		FlowRate:   r.Tag(TagFlowRate, src),
		State:      r.Tag(TagStateString, src),
	}
}

func placeholderPump() PumpData {
	return PumpData{
		TargetRate: Text(Placeholder),
		FlowRate:   Text(Placeholder),
		State:      Text(Placeholder),
	}
}

// AggregateSolar combines readings across all solar controllers: voltage,
// percentage and panel power are averaged, remaining charge is summed.
//
// An empty list yields the fixed fallbacks. A non-empty list whose reads are
// all absent yields zeros; the two cases are deliberately different.
func AggregateSolar(r TagReader, solar SourceList) SolarData {
	if solar.Kind() == ListEmpty {
		return SolarData{
			BatteryVoltage:    FallbackBatteryVoltage,
			BatteryPercentage: FallbackBatteryPercentage,
			PanelPower:        FallbackPanelPower,
			BatteryAh:         FallbackBatteryAh,
		}
	}

	var voltages, percentages, power, ah []float64
	for _, src := range solar.All() {
		voltages = appendNumeric(voltages, r.Tag(TagBatteryVoltage, src))
		percentages = appendNumeric(percentages, r.Tag(TagBatteryPercent, src))
		power = appendNumeric(power, r.Tag(TagPanelPower, src))
		ah = appendNumeric(ah, r.Tag(TagRemainingAh, src))
	}

	return SolarData{
		BatteryVoltage:    mean(voltages),
		BatteryPercentage: mean(percentages),
		PanelPower:        mean(power),
		BatteryAh:         sum(ah),
	}
}

// ReadTank reads the tank level (metres) and fill percentage and converts
// the level to millimetres. An unset source uses the fallbacks; the
// conversion is applied to the fallback level too.
func ReadTank(r TagReader, tank OptionalSource) TankData {
	var level, percent Reading
	if src, ok := tank.Get(); ok {
		level = r.Tag(TagLevelReading, src)
		percent = r.Tag(TagLevelFilledPercentage, src)
	} else {
		level = Number(FallbackTankLevel)
		percent = Number(FallbackTankLevelPercent)
	}

	mm := Absent
	if v, ok := level.Float(); ok {
		mm = Number(v * metresToMillimetres)
	}
	return TankData{LevelMM: mm, LevelPercent: percent}
}

// ReadSkid reads the "value" tag from the flow and pressure sensors.
// There is no fallback: unset sources and missing tags are Absent.
func ReadSkid(r TagReader, flow, pressure OptionalSource) SkidData {
	return SkidData{
		Flow:     readValue(r, flow),
		Pressure: readValue(r, pressure),
	}
}

func readValue(r TagReader, o OptionalSource) Reading {
	src, ok := o.Get()
	if !ok {
		return Absent
	}
	return r.Tag(TagValue, src)
}

func appendNumeric(vs []float64, r Reading) []float64 {
	if v, ok := r.Float(); ok {
		return append(vs, v)
	}
	return vs
}

func sum(vs []float64) float64 {
	var total float64
	for _, v := range vs {
		total += v
	}
	return total
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return sum(vs) / float64(len(vs))
}
