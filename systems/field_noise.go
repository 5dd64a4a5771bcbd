package systems

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/compute"
	"github.com/pthm-cable/flowtrails/config"
)

// Noise kinds accepted by NewNoiseField.
const (
	NoisePerlin  = "perlin"
	NoiseSimplex = "simplex"
)

// MaxStepsPerTick bounds how far an animated field may advance in one tick.
const MaxStepsPerTick = 16

// noise3 evaluates coherent noise roughly in [-1,1].
type noise3 func(x, y, z float64) float64

// NoiseField is an animated vector field regenerated from 3D noise, with
// time as the third axis. Each Step advances time and rebuilds the grid.
type NoiseField struct {
	w, h     int
	dirs     []r2.Vec
	eval     noise3
	scale    float64
	timeStep float64
	time     float64
	pool     *compute.Pool // optional; rows are rebuilt inline when nil
}

// NewNoiseField creates a noise field and builds its first frame.
func NewNoiseField(cfg config.NoiseFieldConfig, seed int64, pool *compute.Pool) (*NoiseField, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("noise field %dx%d: %w", cfg.Width, cfg.Height, ErrEmptyField)
	}

	var eval noise3
	switch cfg.Kind {
	case "", NoisePerlin:
		octaves := cfg.Octaves
		if octaves < 1 {
			octaves = 1
		}
		alpha, beta := cfg.Alpha, cfg.Beta
		if alpha == 0 {
			alpha = 2
		}
		if beta == 0 {
			beta = 2
		}
		p := perlin.NewPerlin(alpha, beta, int32(octaves), seed)
		eval = p.Noise3D
	case NoiseSimplex:
		eval = opensimplex.New(seed).Eval3
	default:
		return nil, fmt.Errorf("unknown noise kind %q", cfg.Kind)
	}

	f := &NoiseField{
		w:        cfg.Width,
		h:        cfg.Height,
		dirs:     make([]r2.Vec, cfg.Width*cfg.Height),
		eval:     eval,
		scale:    cfg.Scale,
		timeStep: cfg.TimeStep,
		pool:     pool,
	}
	f.rebuild()
	return f, nil
}

// Size implements FieldSampler.
func (f *NoiseField) Size() (int, int) { return f.w, f.h }

// Direction implements FieldSampler using the nearest texel.
func (f *NoiseField) Direction(u, v float64) r2.Vec {
	return f.dirs[texel(v, f.h)*f.w+texel(u, f.w)]
}

// Angle returns the field angle of texel (x, y) in [0, 2*pi).
func (f *NoiseField) Angle(x, y int) float64 {
	d := f.dirs[y*f.w+x]
	a := math.Atan2(d.Y, d.X)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// Time returns the current noise time coordinate.
func (f *NoiseField) Time() float64 { return f.time }

// Step implements FieldStepper. steps is clamped to [0, MaxStepsPerTick].
func (f *NoiseField) Step(steps int) {
	if steps > MaxStepsPerTick {
		steps = MaxStepsPerTick
	}
	if steps <= 0 || f.timeStep == 0 {
		return
	}
	f.time += float64(steps) * f.timeStep
	f.rebuild()
}

// rebuild regenerates every texel for the current time.
func (f *NoiseField) rebuild() {
	row := func(y, _ int) {
		v := (float64(y) + 0.5) / float64(f.h) * f.scale
		for x := 0; x < f.w; x++ {
			u := (float64(x) + 0.5) / float64(f.w) * f.scale
			f.dirs[y*f.w+x] = angleDir(f.eval(u, v, f.time) * 2 * math.Pi)
		}
	}
	if f.pool == nil {
		for y := 0; y < f.h; y++ {
			row(y, 0)
		}
		return
	}
	// Dispatch treats each row as a group; a closed pool falls back to inline.
	if err := f.pool.Dispatch(f.h, 1, row); err != nil {
		for y := 0; y < f.h; y++ {
			row(y, 0)
		}
	}
}
