package main

import (
	"io"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flowtrails/config"
	"github.com/pthm-cable/flowtrails/sim"
	"github.com/pthm-cable/flowtrails/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	ticks       int
	seeds       []int64
	baseConfig  *config.Config
	windowTicks int

	mu   sync.Mutex
	last Score // seed-averaged score of the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		ticks:       ticks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		windowTicks: 60,
	}
}

// LastScore returns the seed-averaged score of the most recent evaluation.
func (fe *FitnessEvaluator) LastScore() Score {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated quality of the seed-averaged score.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	scores := make([]Score, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				slog.Warn("evaluation failed", "seed", s, "error", err)
				return
			}
			scores[idx] = scoreRun(windows)
		}(i, seed)
	}
	wg.Wait()

	score := meanScore(scores)

	fe.mu.Lock()
	fe.last = score
	fe.mu.Unlock()

	return -score.Quality
}

// runSimulation executes a single headless run and returns its stats windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) ([]telemetry.WindowStats, error) {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Simulation.Seed = seed
	// Seeds run concurrently; split the cores between them
	cfg.Compute.Workers = max(1, runtime.GOMAXPROCS(0)/len(fe.seeds))
	cfg.ComputeDerived()

	s := sim.New(cfg, sim.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer s.Close()
	if err := s.Init(); err != nil {
		return nil, err
	}

	collector := telemetry.NewCollector(fe.windowTicks, cfg.Simulation.DT)
	sample := func() telemetry.Sample {
		p := s.Parameters()
		return telemetry.Sample{FlowType: p.FlowType, Decay: p.Decay, Trail: s.Trail(), Agents: s.Agents()}
	}
	collector.Begin(0, sample())

	var windows []telemetry.WindowStats
	for s.Tick() < fe.ticks {
		if err := s.Step(); err != nil {
			return windows, err
		}
		if collector.ShouldFlush(s.Tick()) {
			windows = append(windows, collector.Flush(s.Tick(), sample()))
		}
	}
	return windows, nil
}

// copyConfig creates a copy of the base config. Config holds only values,
// so a struct copy is deep.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	return &cfg
}

// Quality component weights.
const (
	qualityWeightCoverage  = 0.5
	qualityWeightContrast  = 0.3
	qualityWeightStability = 0.2

	qualityWarmupWindows = 2 // skip first N windows while the trail builds up
)

// Score breaks a run's trail quality into its components, each in [0, 1].
type Score struct {
	Quality    float64
	Coverage   float64 // Mean fraction of covered cells
	Saturation float64 // Mean fraction of saturated cells
	Stability  float64 // exp(-cv^2) of the trail total across windows
}

// scoreRun scores a run: wide coverage, few saturated cells, and a steady
// total intensity once the trail has built up. Runs too short to get past
// the warmup score zero.
func scoreRun(windows []telemetry.WindowStats) Score {
	if len(windows) <= qualityWarmupWindows {
		return Score{}
	}
	valid := windows[qualityWarmupWindows:]

	coverage := make([]float64, len(valid))
	saturation := make([]float64, len(valid))
	totals := make([]float64, len(valid))
	for i, w := range valid {
		coverage[i] = w.Coverage
		saturation[i] = w.Saturation
		totals[i] = w.TrailTotal
	}

	sc := Score{
		Coverage:   stat.Mean(coverage, nil),
		Saturation: stat.Mean(saturation, nil),
	}
	if len(totals) >= 2 {
		if mean, std := stat.PopMeanStdDev(totals, nil); mean > 0 {
			cv := std / mean
			sc.Stability = math.Exp(-cv * cv)
		}
	}

	q := qualityWeightCoverage*sc.Coverage +
		qualityWeightContrast*(1-sc.Saturation) +
		qualityWeightStability*sc.Stability
	sc.Quality = min(max(q, 0), 1)
	return sc
}

// meanScore averages per-seed scores component by component.
func meanScore(scores []Score) Score {
	if len(scores) == 0 {
		return Score{}
	}
	col := make([]float64, len(scores))
	mean := func(get func(Score) float64) float64 {
		for i, sc := range scores {
			col[i] = get(sc)
		}
		return stat.Mean(col, nil)
	}
	return Score{
		Quality:    mean(func(sc Score) float64 { return sc.Quality }),
		Coverage:   mean(func(sc Score) float64 { return sc.Coverage }),
		Saturation: mean(func(sc Score) float64 { return sc.Saturation }),
		Stability:  mean(func(sc Score) float64 { return sc.Stability }),
	}
}

// LogValue implements slog.LogValuer.
func (sc Score) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("quality", sc.Quality),
		slog.Float64("coverage", sc.Coverage),
		slog.Float64("saturation", sc.Saturation),
		slog.Float64("stability", sc.Stability),
	)
}
