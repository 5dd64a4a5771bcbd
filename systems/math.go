package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// unitOrZero normalizes v, returning the zero vector when v has no length.
func unitOrZero(v r2.Vec) r2.Vec {
	n := r2.Norm(v)
	if n < 1e-12 {
		return r2.Vec{}
	}
	return r2.Scale(1/n, v)
}

// wrap01 maps x onto the torus [0,1).
func wrap01(x float64) float64 {
	x -= math.Floor(x)
	// x - floor(x) rounds to 1 for tiny negative inputs
	if x >= 1 {
		return 0
	}
	return x
}

// clamp01 limits x to [0,1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// sign returns -1, 0 or 1.
func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
