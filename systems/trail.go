package systems

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/compute"
)

// Trail is a square, row-major intensity image that decays every tick and
// receives deposits at agent positions.
type Trail struct {
	Dim   int
	Cells []float32

	deposit float32
	max     float32
}

// NewTrail allocates a zeroed dim x dim trail.
func NewTrail(dim int, deposit, maxIntensity float64) (*Trail, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("trail dimension %d must be positive", dim)
	}
	return &Trail{
		Dim:     dim,
		Cells:   make([]float32, dim*dim),
		deposit: float32(deposit),
		max:     float32(maxIntensity),
	}, nil
}

// Decay multiplies every cell by 1-decay on dev. decay is expected in [0,1];
// decay 0 leaves the trail untouched.
func (t *Trail) Decay(dev compute.TrailDevice, decay float64) error {
	if decay <= 0 {
		return nil
	}
	keep := float32(1 - decay)
	if decay >= 1 {
		keep = 0
	}
	return dev.Decay(t.Cells, t.Dim, keep)
}

// Deposit adds intensity at the cell under each agent, saturating at the
// maximum. It runs after Decay has completed, in agent order, so that
// agents sharing a cell never race.
func (t *Trail) Deposit(agents []components.Agent) {
	for i := range agents {
		p := agents[i].Pos
		idx := texel(p.Y, t.Dim)*t.Dim + texel(p.X, t.Dim)
		v := t.Cells[idx] + t.deposit
		if v > t.max {
			v = t.max
		}
		t.Cells[idx] = v
	}
}

// At returns the intensity of cell (x, y).
func (t *Trail) At(x, y int) float32 {
	return t.Cells[y*t.Dim+x]
}

// Total returns the summed intensity of all cells.
func (t *Trail) Total() float64 {
	return float64(blas32.Asum(t.vector()))
}

// Peak returns the largest cell intensity.
func (t *Trail) Peak() float32 {
	i := blas32.Iamax(t.vector())
	if i < 0 {
		return 0
	}
	return t.Cells[i]
}

// Coverage returns the fraction of cells above threshold.
func (t *Trail) Coverage(threshold float32) float64 {
	n := 0
	for _, v := range t.Cells {
		if v > threshold {
			n++
		}
	}
	return float64(n) / float64(len(t.Cells))
}

// MaxIntensity returns the saturation level of a cell.
func (t *Trail) MaxIntensity() float32 { return t.max }

func (t *Trail) vector() blas32.Vector {
	return blas32.Vector{N: len(t.Cells), Inc: 1, Data: t.Cells}
}
