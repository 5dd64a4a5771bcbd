package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/config"
	"github.com/pthm-cable/flowtrails/sim"
	"github.com/pthm-cable/flowtrails/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = run until interrupted)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, trail snapshots and config")
	fieldPath := flag.String("field", "", "Vector field image (green channel = angle); overrides field.source")
	flow := flag.String("flow", "", "Initial flow type (empty = use config)")
	decay := flag.Float64("decay", -1, "Trail decay in [0,1] (negative = use config)")
	backend := flag.String("backend", "", "Trail decay backend: cpu or opencl (empty = use config)")
	flowCycle := flag.Int("flow-cycle", 0, "Advance to the next flow type every N ticks (0 = off)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Command-line overrides
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *fieldPath != "" {
		cfg.Field.Source = sim.FieldImage
		cfg.Field.Path = *fieldPath
	}
	if *flow != "" {
		ft, err := components.ParseFlowType(*flow)
		if err != nil {
			slog.Error("invalid flow type", "error", err)
			os.Exit(1)
		}
		cfg.Runtime.FlowType = ft
	}
	if *decay >= 0 {
		cfg.Runtime.Decay = *decay
	}
	if *backend != "" {
		cfg.Compute.Backend = *backend
	}
	cfg.ComputeDerived()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		MaxTicks:  *maxTicks,
		OutputDir: *outputDir,
		FlowCycle: *flowCycle,
		LogStats:  *logStats,
	}
	if err := run(ctx, cfg, opts); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	MaxTicks  int
	OutputDir string
	FlowCycle int
	LogStats  bool
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	perf := telemetry.NewPerfCollector()
	s := sim.New(cfg, sim.Options{Perf: perf})
	defer s.Close()
	if err := s.Init(); err != nil {
		return err
	}

	collector := telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Simulation.DT)
	collector.Begin(0, sample(s))

	slog.Info("starting simulation",
		"seed", cfg.Simulation.Seed,
		"max_ticks", opts.MaxTicks,
		"flow_cycle", opts.FlowCycle,
		"output_dir", output.Dir(),
	)

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("interrupted", "tick", s.Tick())
			return nil
		}

		if opts.FlowCycle > 0 && s.Tick() > 0 && s.Tick()%opts.FlowCycle == 0 {
			p := s.Parameters()
			p.FlowType = p.FlowType.Next()
			if err := s.SetParameters(p); err != nil {
				return err
			}
			slog.Info("flow type changed", "tick", s.Tick(), "flow_type", p.FlowType)
		}

		if err := s.Step(); err != nil {
			if errors.Is(err, sim.ErrDisposed) {
				return nil
			}
			return err
		}
		tick := s.Tick()

		if every := cfg.Telemetry.SnapshotEvery; every > 0 && tick%every == 0 {
			path, err := output.WriteTrail(s.Trail(), tick)
			if err != nil {
				slog.Error("failed to write trail snapshot", "error", err)
			} else if path != "" {
				slog.Debug("trail snapshot saved", "path", path, "tick", tick)
			}
		}

		if collector.ShouldFlush(tick) {
			flushTelemetry(collector, perf, output, s, opts.LogStats)
		}

		if opts.MaxTicks > 0 && tick >= opts.MaxTicks {
			slog.Info("max ticks reached", "tick", tick)
			return nil
		}
	}
}

func sample(s *sim.Simulation) telemetry.Sample {
	p := s.Parameters()
	return telemetry.Sample{
		FlowType:     p.FlowType,
		Decay:        p.Decay,
		FlowSwitches: s.FlowSwitches(),
		Trail:        s.Trail(),
		Agents:       s.Agents(),
	}
}

// flushTelemetry closes the current stats window and writes it out.
func flushTelemetry(c *telemetry.Collector, perf *telemetry.PerfCollector, output *telemetry.OutputManager, s *sim.Simulation, logStats bool) {
	stats := c.Flush(s.Tick(), sample(s))
	perfStats := perf.Window()

	if logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}
