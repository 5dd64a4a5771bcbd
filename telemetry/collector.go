package telemetry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/systems"
)

// Shares of the trail's maximum intensity a cell must exceed to count as
// covered or saturated.
const (
	CoverageFraction   = 0.01
	SaturationFraction = 0.99
)

// Sample is the simulation state a Collector reads at window end.
type Sample struct {
	FlowType     components.FlowType
	Decay        float64
	FlowSwitches int // Total applied since start
	Trail        *systems.Trail
	Agents       []components.Agent
}

// Collector groups ticks into fixed windows and produces WindowStats.
type Collector struct {
	windowTicks int
	dt          float64

	windowStartTick int
	startSwitches   int
	startPos        []r2.Vec
}

// NewCollector creates a new stats collector.
// windowTicks: ticks per window; dt: seconds per tick.
func NewCollector(windowTicks int, dt float64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		dt:          dt,
	}
}

// Begin records the window-start state. Call it once before the first tick;
// Flush calls it again for the following window.
func (c *Collector) Begin(tick int, s Sample) {
	c.windowStartTick = tick
	c.startSwitches = s.FlowSwitches
	if cap(c.startPos) < len(s.Agents) {
		c.startPos = make([]r2.Vec, len(s.Agents))
	}
	c.startPos = c.startPos[:len(s.Agents)]
	for i := range s.Agents {
		c.startPos[i] = s.Agents[i].Pos
	}
}

// ShouldFlush reports whether the window ending at tick is complete.
func (c *Collector) ShouldFlush(tick int) bool {
	return tick-c.windowStartTick >= c.windowTicks
}

// Flush computes the stats of the current window and starts the next one.
func (c *Collector) Flush(tick int, s Sample) WindowStats {
	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   tick,
		SimTimeSec:      float64(tick) * c.dt,
		FlowType:        s.FlowType.String(),
		Decay:           s.Decay,
		FlowSwitches:    s.FlowSwitches - c.startSwitches,
		Agents:          len(s.Agents),
	}

	if t := s.Trail; t != nil {
		stats.TrailTotal = t.Total()
		stats.TrailMean = stats.TrailTotal / float64(len(t.Cells))
		stats.TrailPeak = float64(t.Peak())
		stats.Coverage = t.Coverage(t.MaxIntensity() * CoverageFraction)
		stats.Saturation = t.Coverage(t.MaxIntensity() * SaturationFraction)
	}

	if n := len(s.Agents); n > 0 {
		speeds := make([]float64, n)
		radii := make([]float64, n)
		var heading r2.Vec
		var moved float64
		center := r2.Vec{X: 0.5, Y: 0.5}
		for i, a := range s.Agents {
			speeds[i] = a.Speed
			radii[i] = r2.Norm(r2.Sub(a.Pos, center))
			heading = r2.Add(heading, a.Vel)
			if i < len(c.startPos) {
				moved += torusDistance(c.startPos[i], a.Pos)
			}
		}
		stats.SpeedMean, stats.SpeedStd, _, _, _ = ComputeDistStats(speeds)
		stats.RadiusMean, stats.RadiusStd, stats.RadiusP10, stats.RadiusP50, stats.RadiusP90 = ComputeDistStats(radii)
		stats.HeadingX = heading.X / float64(n)
		stats.HeadingY = heading.Y / float64(n)
		stats.Displacement = moved / float64(n)
	}

	c.Begin(tick, s)
	return stats
}

// torusDistance is the shortest distance between a and b on the unit torus.
func torusDistance(a, b r2.Vec) float64 {
	dx := math.Abs(a.X - b.X)
	dy := math.Abs(a.Y - b.Y)
	dx = math.Min(dx, 1-dx)
	dy = math.Min(dy, 1-dy)
	return math.Hypot(dx, dy)
}
