package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// FieldSampler provides unit flow directions at normalized coordinates.
// Implementations must be safe for concurrent reads; u and v are clamped
// to [0,1] by the caller.
type FieldSampler interface {
	Size() (w, h int)
	Direction(u, v float64) r2.Vec
}

// FieldStepper is implemented by fields that evolve over time.
// Step is never called concurrently with Direction.
type FieldStepper interface {
	Step(steps int)
}

// UniformField returns the same direction everywhere.
type UniformField struct {
	dir r2.Vec
}

// NewUniformField creates a field pointing along angle (radians).
func NewUniformField(angle float64) *UniformField {
	return &UniformField{dir: angleDir(angle)}
}

// Size implements FieldSampler. A uniform field behaves like a 1x1 texture.
func (f *UniformField) Size() (int, int) { return 1, 1 }

// Direction implements FieldSampler.
func (f *UniformField) Direction(_, _ float64) r2.Vec { return f.dir }

// angleDir converts an angle to a unit vector.
func angleDir(angle float64) r2.Vec {
	s, c := math.Sincos(angle)
	return r2.Vec{X: c, Y: s}
}

// texel maps a normalized coordinate to a texel index, clamping out-of-range
// coordinates to the border texel.
func texel(u float64, n int) int {
	i := int(u * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
