package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Runtime parameters at window end
	FlowType     string  `csv:"flow_type"`
	Decay        float64 `csv:"decay"`
	FlowSwitches int     `csv:"flow_switches"` // Applied during the window

	// Trail (sampled at window end)
	TrailTotal float64 `csv:"trail_total"`
	TrailMean  float64 `csv:"trail_mean"`
	TrailPeak  float64 `csv:"trail_peak"`
	Coverage   float64 `csv:"coverage"`   // Fraction of cells above CoverageFraction of max
	Saturation float64 `csv:"saturation"` // Fraction of cells above SaturationFraction of max

	// Agents (sampled at window end)
	Agents       int     `csv:"agents"`
	SpeedMean    float64 `csv:"speed_mean"`
	SpeedStd     float64 `csv:"speed_std"`
	HeadingX     float64 `csv:"heading_x"` // Mean velocity x
	HeadingY     float64 `csv:"heading_y"`
	RadiusMean   float64 `csv:"radius_mean"` // Distance from the domain center
	RadiusStd    float64 `csv:"radius_std"`
	RadiusP10    float64 `csv:"radius_p10"`
	RadiusP50    float64 `csv:"radius_p50"`
	RadiusP90    float64 `csv:"radius_p90"`
	Displacement float64 `csv:"displacement"` // Mean toroidal distance from window-start positions
}

// Percentile returns the p-th quantile of a sorted slice using gonum's
// linear interpolation. p is clamped to [0, 1]; an empty slice gives 0.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(min(max(p, 0), 1), stat.LinInterp, sorted, nil)
}

// ComputeDistStats calculates the population mean, standard deviation and
// percentiles of values. values is left unsorted.
func ComputeDistStats(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.String("flow_type", s.FlowType),
		slog.Float64("decay", s.Decay),
		slog.Int("flow_switches", s.FlowSwitches),
		slog.Float64("trail_total", s.TrailTotal),
		slog.Float64("trail_mean", s.TrailMean),
		slog.Float64("trail_peak", s.TrailPeak),
		slog.Float64("coverage", s.Coverage),
		slog.Float64("saturation", s.Saturation),
		slog.Int("agents", s.Agents),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("heading_x", s.HeadingX),
		slog.Float64("heading_y", s.HeadingY),
		slog.Float64("radius_mean", s.RadiusMean),
		slog.Float64("radius_std", s.RadiusStd),
		slog.Float64("radius_p10", s.RadiusP10),
		slog.Float64("radius_p50", s.RadiusP50),
		slog.Float64("radius_p90", s.RadiusP90),
		slog.Float64("displacement", s.Displacement),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
