// Package components defines the data model shared by the simulation stages.
package components

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Agent is a single simulated point. Pos is normalized to the trail image,
// each axis in [0,1).
type Agent struct {
	Pos       r2.Vec
	Vel       r2.Vec // unit heading, or zero when the blend cancels out
	Speed     float64
	Enforcing r2.Vec // per-agent bias blended into every velocity update
}
