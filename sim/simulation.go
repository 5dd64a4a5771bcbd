// Package sim drives the agent flow simulation: it owns the agent pool, the
// trail and the dispatch resources, and runs the per-tick pipeline.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/compute"
	"github.com/pthm-cable/flowtrails/config"
	"github.com/pthm-cable/flowtrails/systems"
	"github.com/pthm-cable/flowtrails/telemetry"
)

// State is the lifecycle stage of a Simulation.
type State int

const (
	Uninitialized State = iota
	Initialized
	Running
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Parameters are the runtime values uploaded before every tick.
type Parameters struct {
	FlowType components.FlowType
	Decay    float64
}

// Options configures a Simulation beyond what the config file holds.
type Options struct {
	Field  systems.FieldSampler     // Used instead of building cfg.Field when set
	Perf   *telemetry.PerfCollector // Phase timings; nil disables
	Logger *slog.Logger             // nil uses slog.Default()
}

// Simulation runs the init, advance and accumulate stages in order.
// It is not safe for concurrent use.
type Simulation struct {
	cfg   *config.Config
	log   *slog.Logger
	perf  *telemetry.PerfCollector
	state State

	seed   int64
	params Parameters

	pool    *compute.Pool
	device  compute.TrailDevice
	field   systems.FieldSampler
	stepper systems.FieldStepper
	agents  *systems.AgentPool
	trail   *systems.Trail
	policy  systems.FlowPolicy

	userField bool
	tick      int
	switches  int
}

// New creates an uninitialized simulation. cfg is read at Init; callers
// must have run cfg.ComputeDerived after mutating it.
func New(cfg *config.Config, opts Options) *Simulation {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Simulation{
		cfg:       cfg,
		log:       log,
		perf:      opts.Perf,
		seed:      cfg.Simulation.Seed,
		field:     opts.Field,
		userField: opts.Field != nil,
	}
	s.params = Parameters{
		FlowType: cfg.Runtime.FlowType,
		Decay:    s.clampDecay(cfg.Runtime.Decay),
	}
	return s
}

// Init validates the configuration, allocates every resource and runs the
// init-agents dispatch. On failure all partial allocations are released and
// the simulation stays uninitialized.
func (s *Simulation) Init() error {
	switch s.state {
	case Disposed:
		return ErrDisposed
	case Initialized, Running:
		return fmt.Errorf("sim: already %s", s.state)
	}
	if err := s.init(); err != nil {
		s.release()
		return err
	}
	s.state = Initialized
	s.log.Info("simulation initialized",
		"agents", s.agents.Len(),
		"texture_dimension", s.trail.Dim,
		"group_size", s.cfg.Simulation.GroupSize,
		"workers", s.pool.Workers(),
		"device", s.device.Name(),
		"flow_type", s.params.FlowType,
		"decay", s.params.Decay,
		"seed", s.seed,
	)
	return nil
}

func (s *Simulation) init() error {
	cfg := s.cfg
	group := cfg.Simulation.GroupSize
	dim := cfg.Simulation.TextureDimension

	if group < 1 {
		return fmt.Errorf("group size %d: %w", group, ErrInvalidDimension)
	}
	if dim <= 0 || dim%group != 0 {
		return fmt.Errorf("texture dimension %d not a positive multiple of group size %d: %w", dim, group, ErrInvalidDimension)
	}
	if limit := cfg.Simulation.MaxTextureDimension; limit > 0 && dim > limit {
		return fmt.Errorf("texture dimension %d exceeds %d: %w", dim, limit, ErrResourceLimit)
	}
	n := cfg.Derived.AgentCount
	if limit := cfg.Simulation.MaxAgents; limit > 0 && n > limit {
		return fmt.Errorf("agent count %d exceeds %d: %w", n, limit, ErrResourceLimit)
	}
	if n > cfg.Simulation.AgentCount {
		s.log.Warn("agent count rounded up to a multiple of the group size",
			"requested", cfg.Simulation.AgentCount,
			"agents", n,
			"group_size", group,
		)
	}
	if !s.params.FlowType.Valid() {
		return fmt.Errorf("invalid flow type %v", s.params.FlowType)
	}
	switch cfg.Compute.Backend {
	case "", compute.BackendCPU, compute.BackendOpenCL:
	default:
		return fmt.Errorf("unknown compute backend %q", cfg.Compute.Backend)
	}

	s.pool = compute.NewPool(cfg.Derived.Workers, cfg.Compute.ParallelThreshold)

	if s.field == nil {
		field, err := NewField(cfg.Field, s.seed, s.pool)
		if err != nil {
			return err
		}
		s.field = field
	}
	if w, h := s.field.Size(); w <= 0 || h <= 0 {
		return fmt.Errorf("vector field %dx%d: %w", w, h, ErrInvalidDimension)
	}
	s.stepper, _ = s.field.(systems.FieldStepper)

	device, err := compute.NewTrailDevice(cfg.Compute.Backend, s.pool, dim, group)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResourceLimit, err)
	}
	s.device = device
	if s.perf != nil {
		s.perf.SetDevice(device.Name())
	}

	trail, err := systems.NewTrail(dim, cfg.Trail.Deposit, cfg.Trail.MaxIntensity)
	if err != nil {
		return fmt.Errorf("allocating trail: %w: %w", ErrInvalidDimension, err)
	}
	s.trail = trail

	agents, err := systems.NewAgentPool(n, group)
	if err != nil {
		return fmt.Errorf("allocating agents: %w: %w", ErrInvalidDimension, err)
	}
	if inset := systems.SpawnInset(cfg.Agents, cfg.Simulation.DT); inset != cfg.Agents.SpawnInset {
		s.log.Debug("spawn inset adjusted to the one-tick step",
			"configured", cfg.Agents.SpawnInset,
			"inset", inset,
		)
	}
	if err := agents.Init(s.pool, cfg.Agents, cfg.Simulation.DT, uint64(s.seed)); err != nil {
		return fmt.Errorf("initializing agents: %w", err)
	}
	s.agents = agents

	return s.rebuildPolicy()
}

// SetParameters replaces the runtime parameters used from the next tick on.
// Decay outside [0,1] is clamped.
func (s *Simulation) SetParameters(p Parameters) error {
	if s.state == Disposed {
		return ErrDisposed
	}
	if !p.FlowType.Valid() {
		return fmt.Errorf("invalid flow type %v", p.FlowType)
	}
	p.Decay = s.clampDecay(p.Decay)
	s.params = p
	return nil
}

// Parameters returns the current runtime parameters.
func (s *Simulation) Parameters() Parameters { return s.params }

func (s *Simulation) clampDecay(d float64) float64 {
	c := config.ClampDecay(d)
	if c != d {
		s.log.Warn("decay clamped", "requested", d, "decay", c)
	}
	return c
}

// Step runs one tick: parameter upload, field step, advance, decay, deposit.
// Each stage finishes before the next starts.
func (s *Simulation) Step() error {
	switch s.state {
	case Uninitialized:
		return ErrNotInitialized
	case Disposed:
		return ErrDisposed
	}

	if s.perf != nil {
		s.perf.StartTick()
		defer s.perf.EndTick()
	}

	// Parameter upload: a flow switch takes effect on this tick
	s.phase(telemetry.PhaseParams, 0)
	if s.policy.Type() != s.params.FlowType {
		if err := s.rebuildPolicy(); err != nil {
			return err
		}
		s.switches++
	}

	fieldRows := 0
	if s.stepper != nil {
		_, fieldRows = s.field.Size()
	}
	s.phase(telemetry.PhaseField, fieldRows)
	if s.stepper != nil {
		s.stepper.Step(s.cfg.Field.Noise.StepsPerTick)
	}

	s.phase(telemetry.PhaseAdvance, s.agents.Groups())
	err := s.agents.Advance(s.pool, systems.AdvanceParams{
		Field:  s.field,
		Policy: s.policy,
		Blend:  s.cfg.Blend,
		DT:     s.cfg.Simulation.DT,
	})
	if err != nil {
		return fmt.Errorf("advancing agents: %w", err)
	}

	tiles := s.cfg.Derived.TrailGroups
	s.phase(telemetry.PhaseDecay, tiles*tiles)
	if err := s.trail.Decay(s.device, s.params.Decay); err != nil {
		return fmt.Errorf("decaying trail: %w", err)
	}

	s.phase(telemetry.PhaseDeposit, s.agents.Groups())
	s.trail.Deposit(s.agents.Agents)

	s.tick++
	s.state = Running
	return nil
}

// phase starts timing a stage that processes groups thread-groups.
func (s *Simulation) phase(p telemetry.Phase, groups int) {
	if s.perf != nil {
		s.perf.StartPhase(p, groups)
	}
}

// rebuildPolicy builds a fresh policy for the current flow type. The seed
// mixes in the tick so a later switch back does not replay old targets.
func (s *Simulation) rebuildPolicy() error {
	seed := uint64(s.seed) ^ (uint64(s.tick) * 0x94D049BB133111EB)
	policy, err := systems.NewFlowPolicy(s.params.FlowType, s.agents.Len(), seed, s.cfg.RandomTarget)
	if err != nil {
		return fmt.Errorf("building flow policy: %w", err)
	}
	s.policy = policy
	return nil
}

// State returns the lifecycle stage.
func (s *Simulation) State() State { return s.state }

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int { return s.tick }

// FlowSwitches returns how many flow type changes have been applied.
func (s *Simulation) FlowSwitches() int { return s.switches }

// Trail returns the trail. Callers must treat it as read-only.
func (s *Simulation) Trail() *systems.Trail { return s.trail }

// Agents returns the agent buffer. Callers must treat it as read-only.
func (s *Simulation) Agents() []components.Agent {
	if s.agents == nil {
		return nil
	}
	return s.agents.Agents
}

// Field returns the vector field in use.
func (s *Simulation) Field() systems.FieldSampler { return s.field }

// Close releases every owned resource. It is safe to call more than once
// and after a failed Init.
func (s *Simulation) Close() {
	if s.state == Disposed {
		return
	}
	s.release()
	s.state = Disposed
	s.log.Debug("simulation disposed", "tick", s.tick)
}

func (s *Simulation) release() {
	if s.device != nil {
		s.device.Close()
		s.device = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	if !s.userField {
		s.field = nil
	}
	s.stepper = nil
	s.agents = nil
	s.trail = nil
	s.policy = nil
}
