package systems

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/compute"
	"github.com/pthm-cable/flowtrails/config"
)

// AgentPool is the fixed-size agent buffer. It is processed in thread-groups
// of groupSize agents; group g owns Agents[g*groupSize : (g+1)*groupSize].
type AgentPool struct {
	Agents    []components.Agent
	groupSize int
}

// AdvanceParams carries everything one advance dispatch reads.
type AdvanceParams struct {
	Field  FieldSampler
	Policy FlowPolicy
	Blend  config.BlendConfig
	DT     float64
}

// NewAgentPool allocates n zeroed agents. n must be a positive multiple of groupSize.
func NewAgentPool(n, groupSize int) (*AgentPool, error) {
	if groupSize < 1 {
		return nil, fmt.Errorf("group size %d must be positive", groupSize)
	}
	if n < groupSize || n%groupSize != 0 {
		return nil, fmt.Errorf("agent count %d is not a positive multiple of group size %d", n, groupSize)
	}
	return &AgentPool{
		Agents:    make([]components.Agent, n),
		groupSize: groupSize,
	}, nil
}

// Len returns the number of agents.
func (p *AgentPool) Len() int { return len(p.Agents) }

// Groups returns the number of thread-groups covering the pool.
func (p *AgentPool) Groups() int { return len(p.Agents) / p.groupSize }

// maxSpawnInset keeps a usable spawn band when agents are very fast.
const maxSpawnInset = 0.45

// MinSpawnInset is the longest distance any agent can cover in one tick.
// Spawning at least this far from the edges means no agent crosses the
// torus seam on its first step.
func MinSpawnInset(cfg config.AgentsConfig, dt float64) float64 {
	return math.Abs(cfg.Speed) * (1 + math.Abs(cfg.SpeedJitter)) * math.Abs(dt)
}

// SpawnInset returns the inset Init actually uses: the configured inset
// raised to MinSpawnInset, capped at maxSpawnInset.
func SpawnInset(cfg config.AgentsConfig, dt float64) float64 {
	inset := cfg.SpawnInset
	if inset < 0 || inset >= 0.5 {
		inset = 0
	}
	if step := MinSpawnInset(cfg, dt); step > 0 && inset <= step {
		inset = step + 1e-9
	}
	return math.Min(inset, maxSpawnInset)
}

// Init assigns starting state to every agent. Each group draws from its own
// stream seeded from seed, so the result does not depend on scheduling.
// Positions are uniform over [inset, 1-inset)^2 with inset from SpawnInset.
func (p *AgentPool) Init(pool *compute.Pool, cfg config.AgentsConfig, dt float64, seed uint64) error {
	inset := SpawnInset(cfg, dt)
	span := 1 - 2*inset

	return pool.Dispatch(p.Groups(), 1, func(g, _ int) {
		var src rand.PCGSource
		src.Seed(seed ^ (uint64(g+1) * 0xBF58476D1CE4E5B9))
		for i := g * p.groupSize; i < (g+1)*p.groupSize; i++ {
			a := &p.Agents[i]
			a.Pos = r2.Vec{
				X: inset + span*unitFloat(&src),
				Y: inset + span*unitFloat(&src),
			}
			a.Vel = r2.Vec{}
			a.Speed = math.Max(0, cfg.Speed*(1+cfg.SpeedJitter*(2*unitFloat(&src)-1)))
			a.Enforcing = r2.Vec{}
			if cfg.EnforcingBias > 0 {
				a.Enforcing = r2.Scale(cfg.EnforcingBias, angleDir(unitFloat(&src)*2*math.Pi))
			}
		}
	})
}

// Advance moves every agent one tick. Agents are independent: each group
// reads shared inputs and writes only its own agents.
func (p *AgentPool) Advance(pool *compute.Pool, params AdvanceParams) error {
	return pool.Dispatch(p.Groups(), 1, func(g, _ int) {
		for i := g * p.groupSize; i < (g+1)*p.groupSize; i++ {
			advanceAgent(&p.Agents[i], i, params)
		}
	})
}

// advanceAgent blends the field, policy, bias and previous heading into a
// new unit velocity, then moves the agent on the torus.
func advanceAgent(a *components.Agent, i int, params AdvanceParams) {
	w := params.Blend

	field := params.Field.Direction(clamp01(a.Pos.X), clamp01(a.Pos.Y))
	policy := params.Policy.Direction(i, a.Pos)

	v := r2.Scale(w.Field, field)
	v = r2.Add(v, r2.Scale(w.Policy, policy))
	v = r2.Add(v, r2.Scale(w.Enforcing, a.Enforcing))
	v = r2.Add(v, r2.Scale(w.Inertia, a.Vel))
	a.Vel = unitOrZero(v)

	step := a.Speed * params.DT
	a.Pos = r2.Vec{
		X: wrap01(a.Pos.X + a.Vel.X*step),
		Y: wrap01(a.Pos.Y + a.Vel.Y*step),
	}
}
