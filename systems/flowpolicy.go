package systems

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/config"
)

// domainCenter is the middle of the normalized domain.
var domainCenter = r2.Vec{X: 0.5, Y: 0.5}

// FlowPolicy computes the target direction of agent i at pos for the
// current tick. Direction is called concurrently for different agents and
// may only mutate state belonging to agent i.
type FlowPolicy interface {
	Type() components.FlowType
	Direction(i int, pos r2.Vec) r2.Vec
}

// NewFlowPolicy builds a fresh policy for flow type t over n agents.
// Policies with per-agent state start from scratch on every call, so
// switching flow types never carries state across the switch.
func NewFlowPolicy(t components.FlowType, n int, seed uint64, cfg config.RandomTargetConfig) (FlowPolicy, error) {
	switch t {
	case components.LeftToRight:
		return leftToRight{}, nil
	case components.CenterToOut:
		return centerToOut{}, nil
	case components.RandomToRandom:
		return newRandomToRandom(n, seed, cfg), nil
	case components.CenterToHorizontal:
		return centerToHorizontal{}, nil
	case components.HorizontalEdgesToCenter:
		return horizontalEdgesToCenter{}, nil
	}
	return nil, fmt.Errorf("unsupported flow type %v", t)
}

type leftToRight struct{}

func (leftToRight) Type() components.FlowType { return components.LeftToRight }

func (leftToRight) Direction(int, r2.Vec) r2.Vec { return r2.Vec{X: 1} }

type centerToOut struct{}

func (centerToOut) Type() components.FlowType { return components.CenterToOut }

// Direction points away from the center; zero at the exact center.
func (centerToOut) Direction(_ int, pos r2.Vec) r2.Vec {
	return unitOrZero(r2.Sub(pos, domainCenter))
}

type centerToHorizontal struct{}

func (centerToHorizontal) Type() components.FlowType { return components.CenterToHorizontal }

// Direction spreads outward along x while pulling toward the y = 0.5 midline.
func (centerToHorizontal) Direction(_ int, pos r2.Vec) r2.Vec {
	return unitOrZero(r2.Vec{X: pos.X - domainCenter.X, Y: domainCenter.Y - pos.Y})
}

type horizontalEdgesToCenter struct{}

func (horizontalEdgesToCenter) Type() components.FlowType {
	return components.HorizontalEdgesToCenter
}

// Direction points from the left and right edges toward the x = 0.5 line.
func (horizontalEdgesToCenter) Direction(_ int, pos r2.Vec) r2.Vec {
	return r2.Vec{X: sign(domainCenter.X - pos.X)}
}

// randomToRandom steers every agent toward its own random target. A target
// is re-rolled when the agent comes within arrivalRadius of it, or after
// maxTicks ticks without arriving.
type randomToRandom struct {
	targets       []r2.Vec
	ages          []int
	srcs          []rand.PCGSource // one stream per agent keeps parallel updates deterministic
	arrivalRadius float64
	maxTicks      int
}

func newRandomToRandom(n int, seed uint64, cfg config.RandomTargetConfig) *randomToRandom {
	p := &randomToRandom{
		targets:       make([]r2.Vec, n),
		ages:          make([]int, n),
		srcs:          make([]rand.PCGSource, n),
		arrivalRadius: cfg.ArrivalRadius,
		maxTicks:      cfg.MaxTicks,
	}
	for i := range p.srcs {
		p.srcs[i].Seed(seed + uint64(i)*0x9E3779B97F4A7C15)
		p.targets[i] = p.roll(i)
	}
	return p
}

func (p *randomToRandom) Type() components.FlowType { return components.RandomToRandom }

func (p *randomToRandom) Direction(i int, pos r2.Vec) r2.Vec {
	p.ages[i]++
	if r2.Norm(r2.Sub(p.targets[i], pos)) <= p.arrivalRadius ||
		(p.maxTicks > 0 && p.ages[i] >= p.maxTicks) {
		p.targets[i] = p.roll(i)
		p.ages[i] = 0
	}
	return unitOrZero(r2.Sub(p.targets[i], pos))
}

// Target returns agent i's current target.
func (p *randomToRandom) Target(i int) r2.Vec { return p.targets[i] }

func (p *randomToRandom) roll(i int) r2.Vec {
	return r2.Vec{X: unitFloat(&p.srcs[i]), Y: unitFloat(&p.srcs[i])}
}

// unitFloat draws a float64 in [0,1) from src.
func unitFloat(src *rand.PCGSource) float64 {
	return float64(src.Uint64()>>11) / (1 << 53)
}
