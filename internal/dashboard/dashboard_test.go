package dashboard

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sia-local-control/internal/logic"
)

func sampleMetrics() logic.Metrics {
	return logic.Metrics{
		Pump:  logic.PumpData{TargetRate: logic.Number(15.5), FlowRate: logic.Number(14.2), State: logic.Text("auto")},
		Pump2: logic.PumpData{TargetRate: logic.Text("-"), FlowRate: logic.Text("-"), State: logic.Text("-")},
		Solar: logic.SolarData{BatteryVoltage: 24.5, BatteryPercentage: 78, PanelPower: 150, BatteryAh: 120},
		Tank:  logic.TankData{LevelMM: logic.Number(1250), LevelPercent: logic.Number(62.5)},
		Skid:  logic.SkidData{Flow: logic.Absent, Pressure: logic.Number(2.1)},
	}
}

func TestDispatchCallsEveryGroup(t *testing.T) {
	sink := &RecordingSink{}
	Dispatch(sink, sampleMetrics())

	want := []string{GroupPump, GroupPump2, GroupSolar, GroupTank, GroupSkid}
	if got := sink.Groups(); !reflect.DeepEqual(got, want) {
		t.Errorf("groups: got %v, want %v", got, want)
	}
}

func TestDispatchEveryTickEvenWhenUnchanged(t *testing.T) {
	sink := &RecordingSink{}
	m := sampleMetrics()
	Dispatch(sink, m)
	Dispatch(sink, m)

	if len(sink.Calls) != 10 {
		t.Errorf("expected 10 calls for two ticks, got %d", len(sink.Calls))
	}
}

func TestDispatchSolarArrayVoltageIsPanelPower(t *testing.T) {
	sink := &RecordingSink{}
	Dispatch(sink, sampleMetrics())

	solar := sink.Calls[2]
	if solar.Group != GroupSolar {
		t.Fatalf("expected solar call, got %s", solar.Group)
	}
	want := []any{24.5, 78.0, 150.0, 120.0}
	if !reflect.DeepEqual(solar.Args, want) {
		t.Errorf("solar args: got %v, want %v", solar.Args, want)
	}
}

func TestDispatchPassesReadingsThrough(t *testing.T) {
	sink := &RecordingSink{}
	Dispatch(sink, sampleMetrics())

	pump2 := sink.Calls[1]
	for i, a := range pump2.Args {
		if a != logic.Text("-") {
			t.Errorf("pump2 arg %d: got %v, want \"-\"", i, a)
		}
	}

	skid := sink.Calls[4]
	if skid.Args[0] != logic.Absent {
		t.Errorf("skid flow: got %v, want absent", skid.Args[0])
	}
	if skid.Args[1] != logic.Number(2.1) {
		t.Errorf("skid pressure: got %v, want 2.1", skid.Args[1])
	}
}

func TestRecordingSinkReset(t *testing.T) {
	sink := &RecordingSink{}
	Dispatch(sink, sampleMetrics())
	sink.Reset()
	if len(sink.Calls) != 0 {
		t.Errorf("expected no calls after reset, got %d", len(sink.Calls))
	}
}

func TestBoardState(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	b := NewBoard(func() time.Time { return now })

	now = start.Add(time.Minute)
	Dispatch(b, sampleMetrics())
	now = start.Add(2 * time.Minute)

	s := b.State()
	if s.Pump.PumpState != logic.Text("auto") {
		t.Errorf("Pump.PumpState: got %v", s.Pump.PumpState)
	}
	if s.Solar.ArrayVoltage != 150 {
		t.Errorf("Solar.ArrayVoltage: got %v, want 150", s.Solar.ArrayVoltage)
	}
	if s.Tank.TankLevelPercent != logic.Number(62.5) {
		t.Errorf("Tank.TankLevelPercent: got %v", s.Tank.TankLevelPercent)
	}
	if s.Updates != 5 {
		t.Errorf("Updates: got %d, want 5", s.Updates)
	}
	if !s.UpdatedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("UpdatedAt: got %v", s.UpdatedAt)
	}
	if s.Uptime() != 2*time.Minute {
		t.Errorf("Uptime: got %v, want 2m", s.Uptime())
	}
}

func TestBoardGroups(t *testing.T) {
	b := NewBoard(nil)
	Dispatch(b, sampleMetrics())

	groups := b.State().Groups()
	if len(groups) != 5 {
		t.Fatalf("expected 5 groups, got %d", len(groups))
	}
	if skid, ok := groups[GroupSkid].(Skid); !ok || skid.SkidPressure != logic.Number(2.1) {
		t.Errorf("skid group: got %+v", groups[GroupSkid])
	}
}

func TestBoardSubscribe(t *testing.T) {
	b := NewBoard(nil)
	var got []Update
	b.Subscribe(func(u Update) { got = append(got, u) })

	b.UpdateTankData(logic.Number(900), logic.Number(45))

	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	if got[0].Group != GroupTank {
		t.Errorf("group: got %s, want tank", got[0].Group)
	}
	tank, ok := got[0].Data.(Tank)
	if !ok {
		t.Fatalf("data: got %T, want Tank", got[0].Data)
	}
	if tank.TankLevelMM != logic.Number(900) {
		t.Errorf("TankLevelMM: got %v", tank.TankLevelMM)
	}
}

func TestBoardConcurrentAccess(t *testing.T) {
	b := NewBoard(nil)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			Dispatch(b, sampleMetrics())
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = b.State().Groups()
		}
	}()

	wg.Wait()
	if b.State().Updates != 2500 {
		t.Errorf("Updates: got %d, want 2500", b.State().Updates)
	}
}
