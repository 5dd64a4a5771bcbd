package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one stage of a simulation tick.
type Phase int

// Tick stages in execution order.
const (
	PhaseParams Phase = iota
	PhaseField
	PhaseAdvance
	PhaseDecay
	PhaseDeposit
	numPhases
)

var phaseNames = [numPhases]string{"params", "field", "advance", "decay", "deposit"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// PerfCollector times the stages of each tick and counts the thread-groups
// every stage processed, so a window can report dispatch throughput per
// stage and per trail device. It accumulates until Window is called.
type PerfCollector struct {
	device string

	ticks     int
	tickTotal time.Duration
	tickMin   time.Duration
	tickMax   time.Duration
	phaseTime [numPhases]time.Duration
	groups    [numPhases]int64

	tickStart  time.Time
	phaseStart time.Time
	current    Phase
	inPhase    bool
}

// NewPerfCollector creates an empty collector.
func NewPerfCollector() *PerfCollector {
	return &PerfCollector{}
}

// SetDevice records the trail device the timings belong to.
func (p *PerfCollector) SetDevice(name string) { p.device = name }

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.inPhase = false
}

// StartPhase closes the running stage and starts phase, which will process
// groups thread-groups (0 for stages that dispatch nothing).
func (p *PerfCollector) StartPhase(phase Phase, groups int) {
	now := time.Now()
	p.closePhase(now)
	p.current = phase
	p.phaseStart = now
	p.inPhase = true
	p.groups[phase] += int64(groups)
}

// EndTick closes the running stage and records the tick duration.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)

	d := now.Sub(p.tickStart)
	if p.ticks == 0 || d < p.tickMin {
		p.tickMin = d
	}
	if d > p.tickMax {
		p.tickMax = d
	}
	p.tickTotal += d
	p.ticks++
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase {
		p.phaseTime[p.current] += now.Sub(p.phaseStart)
		p.inPhase = false
	}
}

// PhaseStats is the per-stage part of PerfStats.
type PhaseStats struct {
	Avg          time.Duration // Per tick
	Pct          float64       // Share of the average tick
	Groups       int64         // Thread-groups processed in the window
	GroupsPerSec float64       // Groups per second of stage time
}

// PerfStats summarizes one window of ticks.
type PerfStats struct {
	Device         string
	Ticks          int
	AvgTick        time.Duration
	MinTick        time.Duration
	MaxTick        time.Duration
	TicksPerSecond float64
	Phases         [numPhases]PhaseStats
}

// Phase returns the stats of one stage.
func (s PerfStats) Phase(p Phase) PhaseStats { return s.Phases[p] }

// Window returns the stats accumulated since the previous call and starts a
// new window. The device name carries over.
func (p *PerfCollector) Window() PerfStats {
	s := PerfStats{Device: p.device, Ticks: p.ticks}
	if p.ticks > 0 {
		s.AvgTick = p.tickTotal / time.Duration(p.ticks)
		s.MinTick = p.tickMin
		s.MaxTick = p.tickMax
		if s.AvgTick > 0 {
			s.TicksPerSecond = float64(time.Second) / float64(s.AvgTick)
		}
		for i := range s.Phases {
			ps := &s.Phases[i]
			ps.Avg = p.phaseTime[i] / time.Duration(p.ticks)
			ps.Groups = p.groups[i]
			if s.AvgTick > 0 {
				ps.Pct = float64(ps.Avg) / float64(s.AvgTick) * 100
			}
			if p.phaseTime[i] > 0 {
				ps.GroupsPerSec = float64(p.groups[i]) / p.phaseTime[i].Seconds()
			}
		}
	}

	*p = PerfCollector{device: p.device}
	return s
}

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "stats", s)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("device", s.Device),
		slog.Int("ticks", s.Ticks),
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for p := PhaseParams; p < numPhases; p++ {
		ps := s.Phases[p]
		if ps.Avg == 0 && ps.Groups == 0 {
			continue
		}
		group := []any{slog.Int64("us", ps.Avg.Microseconds()), slog.Float64("pct", ps.Pct)}
		if ps.Groups > 0 {
			group = append(group, slog.Float64("groups_per_sec", ps.GroupsPerSec))
		}
		attrs = append(attrs, slog.Group(p.String(), group...))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd      int     `csv:"window_end"`
	Device         string  `csv:"device"`
	Ticks          int     `csv:"ticks"`
	AvgTickUS      int64   `csv:"avg_tick_us"`
	MinTickUS      int64   `csv:"min_tick_us"`
	MaxTickUS      int64   `csv:"max_tick_us"`
	TicksPerSec    float64 `csv:"ticks_per_sec"`
	FieldUS        int64   `csv:"field_us"`
	AdvanceUS      int64   `csv:"advance_us"`
	AdvanceGroupsS float64 `csv:"advance_groups_per_sec"`
	DecayUS        int64   `csv:"decay_us"`
	DecayGroupsS   float64 `csv:"decay_groups_per_sec"`
	DepositUS      int64   `csv:"deposit_us"`
}

// ToCSV flattens the window into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		Device:         s.Device,
		Ticks:          s.Ticks,
		AvgTickUS:      s.AvgTick.Microseconds(),
		MinTickUS:      s.MinTick.Microseconds(),
		MaxTickUS:      s.MaxTick.Microseconds(),
		TicksPerSec:    s.TicksPerSecond,
		FieldUS:        s.Phases[PhaseField].Avg.Microseconds(),
		AdvanceUS:      s.Phases[PhaseAdvance].Avg.Microseconds(),
		AdvanceGroupsS: s.Phases[PhaseAdvance].GroupsPerSec,
		DecayUS:        s.Phases[PhaseDecay].Avg.Microseconds(),
		DecayGroupsS:   s.Phases[PhaseDecay].GroupsPerSec,
		DepositUS:      s.Phases[PhaseDeposit].Avg.Microseconds(),
	}
}
