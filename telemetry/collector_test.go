package telemetry

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/systems"
)

func TestCollectorWindows(t *testing.T) {
	c := NewCollector(10, 0.5)

	if c.ShouldFlush(9) {
		t.Error("window should not be complete at tick 9")
	}
	if !c.ShouldFlush(10) {
		t.Error("window should be complete at tick 10")
	}

	stats := c.Flush(10, Sample{FlowType: components.CenterToOut})
	if stats.WindowStartTick != 0 || stats.WindowEndTick != 10 {
		t.Errorf("expected window [0,10], got [%d,%d]", stats.WindowStartTick, stats.WindowEndTick)
	}
	if stats.SimTimeSec != 5 {
		t.Errorf("expected sim time 5, got %v", stats.SimTimeSec)
	}
	if stats.FlowType != "center_to_out" {
		t.Errorf("expected flow type center_to_out, got %q", stats.FlowType)
	}
	if c.ShouldFlush(19) || !c.ShouldFlush(20) {
		t.Error("expected the next window to end at tick 20")
	}
}

func TestCollectorSample(t *testing.T) {
	trail, err := systems.NewTrail(4, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	agents := []components.Agent{
		{Pos: r2.Vec{X: 0.5, Y: 0.5}, Vel: r2.Vec{X: 1}, Speed: 1},
		{Pos: r2.Vec{X: 0.95, Y: 0.5}, Vel: r2.Vec{X: 1}, Speed: 3},
	}
	trail.Deposit(agents)

	c := NewCollector(1, 1)
	c.Begin(0, Sample{FlowSwitches: 2, Agents: agents})

	// Second agent wraps across x = 1
	moved := []components.Agent{
		agents[0],
		{Pos: r2.Vec{X: 0.05, Y: 0.5}, Vel: r2.Vec{X: 1}, Speed: 3},
	}
	stats := c.Flush(1, Sample{FlowSwitches: 3, Trail: trail, Agents: moved})

	if stats.FlowSwitches != 1 {
		t.Errorf("expected 1 switch in window, got %d", stats.FlowSwitches)
	}
	if stats.TrailTotal != 2 || stats.TrailPeak != 1 {
		t.Errorf("expected total 2 and peak 1, got %v and %v", stats.TrailTotal, stats.TrailPeak)
	}
	if stats.Coverage != 2.0/16 {
		t.Errorf("expected coverage %v, got %v", 2.0/16, stats.Coverage)
	}
	if stats.SpeedMean != 2 || stats.SpeedStd != 1 {
		t.Errorf("expected speed mean 2 std 1, got %v %v", stats.SpeedMean, stats.SpeedStd)
	}
	if stats.HeadingX != 1 || stats.HeadingY != 0 {
		t.Errorf("expected heading (1,0), got (%v,%v)", stats.HeadingX, stats.HeadingY)
	}
	if math.Abs(stats.Displacement-0.05) > 1e-9 {
		t.Errorf("expected displacement 0.05 across the wrap, got %v", stats.Displacement)
	}
	if math.Abs(stats.RadiusMean-0.225) > 1e-9 {
		t.Errorf("expected radius mean 0.225, got %v", stats.RadiusMean)
	}
}
