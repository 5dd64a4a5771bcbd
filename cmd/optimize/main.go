// Package main tunes blend, speed and decay parameters with CMA-ES so the
// trail covers the domain widely, stays below saturation and holds a steady
// total intensity.
//
// Usage: go run ./cmd/optimize -output runs/tune [-ticks 1200] [-seeds 3]
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flowtrails/config"
)

type options struct {
	configPath string
	ticks      int
	seeds      int
	maxEvals   int
	population int
	outputDir  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.ticks, "ticks", 1200, "Simulation duration per run in ticks")
	flag.IntVar(&opts.seeds, "seeds", 3, "Number of seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	flag.IntVar(&opts.population, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(opts); err != nil {
		slog.Error("tuning failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := config.Init(opts.configPath); err != nil {
		return err
	}
	baseCfg := config.Cfg()

	params := NewParamVector()
	evalSeeds := make([]int64, opts.seeds)
	for i := range evalSeeds {
		evalSeeds[i] = baseCfg.Simulation.Seed + int64(i)*1000
	}
	evaluator := NewFitnessEvaluator(params, opts.ticks, evalSeeds, baseCfg)

	logFile, err := os.Create(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("creating tuning log: %w", err)
	}
	defer logFile.Close()
	tl := newTuningLog(logFile, params)

	popSize := opts.population
	if popSize == 0 {
		popSize = 4 + 3*params.Dim()/2
	}

	// The baseline is the config itself, so every report is relative to it
	start := params.Clamp(params.ExtractFromConfig(baseCfg))
	baseQuality := -evaluator.Evaluate(start)
	best := tuningBest{score: evaluator.LastScore(), values: start}
	slog.Info("baseline", "score", best.score, "ticks", opts.ticks, "seeds", len(evalSeeds))

	evals := 0
	began := time.Now()
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			score := evaluator.LastScore()
			evals++
			tl.record(evals, score, values, time.Since(began))

			if fitness < -best.score.Quality {
				best = tuningBest{score: score, values: values, eval: evals}
				slog.Info("improved",
					"eval", evals,
					"score", score,
					"gain", score.Quality-baseQuality,
				)
			}
			return fitness
		},
	}

	slog.Info("starting CMA-ES",
		"params", params.Dim(),
		"population", popSize,
		"max_evals", opts.maxEvals,
	)
	_, err = optimize.Minimize(problem, params.Normalize(start), &optimize.Settings{
		FuncEvaluations: opts.maxEvals,
	}, &optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize})
	if err != nil {
		slog.Warn("optimization ended early", "error", err)
	}
	if err := tl.flush(); err != nil {
		return err
	}

	slog.Info("tuning complete",
		"evals", evals,
		"elapsed", time.Since(began).Round(time.Second).String(),
		"best_eval", best.eval,
		"score", best.score,
	)
	for i, spec := range params.Specs {
		slog.Info("best parameter", "path", spec.Path, "value", best.values[i])
	}

	bestCfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	params.ApplyToConfig(bestCfg, best.values)
	out := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(out); err != nil {
		return err
	}
	slog.Info("best config saved", "path", out)
	return nil
}

// tuningBest is the best evaluation so far; eval 0 is the baseline.
type tuningBest struct {
	score  Score
	values []float64
	eval   int
}

// tuningLog writes one CSV row per evaluation: the score components
// followed by the parameter values, one column per tuned parameter.
type tuningLog struct {
	w *csv.Writer
}

func newTuningLog(w io.Writer, params *ParamVector) *tuningLog {
	tl := &tuningLog{w: csv.NewWriter(w)}
	header := []string{"eval", "quality", "coverage", "saturation", "stability", "elapsed_s"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	tl.w.Write(header)
	return tl
}

func (tl *tuningLog) record(eval int, sc Score, values []float64, elapsed time.Duration) {
	row := []string{
		strconv.Itoa(eval),
		fmt.Sprintf("%.6f", sc.Quality),
		fmt.Sprintf("%.6f", sc.Coverage),
		fmt.Sprintf("%.6f", sc.Saturation),
		fmt.Sprintf("%.6f", sc.Stability),
		fmt.Sprintf("%.1f", elapsed.Seconds()),
	}
	for _, v := range values {
		row = append(row, fmt.Sprintf("%.6f", v))
	}
	tl.w.Write(row)
	tl.w.Flush()
}

func (tl *tuningLog) flush() error {
	tl.w.Flush()
	return tl.w.Error()
}
