package compute

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"
)

// TrailDevice applies the global decay pass to a square trail buffer.
// The host slice stays authoritative: a device may stage it elsewhere but
// must leave the decayed values in trail when Decay returns.
type TrailDevice interface {
	Name() string
	Decay(trail []float32, dim int, keep float32) error
	Close()
}

// Backend names accepted by NewTrailDevice.
const (
	BackendCPU    = "cpu"
	BackendOpenCL = "opencl"
)

// NewTrailDevice creates the decay device for the named backend.
func NewTrailDevice(backend string, pool *Pool, dim, groupSize int) (TrailDevice, error) {
	switch backend {
	case "", BackendCPU:
		return NewCPUTrailDevice(pool, groupSize), nil
	case BackendOpenCL:
		dev, err := newOpenCLTrailDevice(dim, groupSize)
		if err != nil {
			return nil, fmt.Errorf("creating opencl trail device: %w", err)
		}
		return dev, nil
	}
	return nil, fmt.Errorf("unknown compute backend %q", backend)
}

// CPUTrailDevice decays the trail in groupSize x groupSize tiles on a Pool.
type CPUTrailDevice struct {
	pool      *Pool
	groupSize int
}

// NewCPUTrailDevice creates a CPU decay device dispatching on pool.
func NewCPUTrailDevice(pool *Pool, groupSize int) *CPUTrailDevice {
	return &CPUTrailDevice{pool: pool, groupSize: groupSize}
}

// Name implements TrailDevice.
func (d *CPUTrailDevice) Name() string { return "cpu" }

// Decay scales every cell by keep. Tiles are disjoint so the groups need no
// synchronization; Dispatch returns once every tile is done.
func (d *CPUTrailDevice) Decay(trail []float32, dim int, keep float32) error {
	if len(trail) != dim*dim {
		return fmt.Errorf("trail buffer has %d cells, expected %d", len(trail), dim*dim)
	}
	g := d.groupSize
	groups := dim / g
	return d.pool.Dispatch(groups, groups, func(gx, gy int) {
		x0 := gx * g
		for y := gy * g; y < (gy+1)*g; y++ {
			row := trail[y*dim+x0 : y*dim+x0+g]
			blas32.Scal(keep, blas32.Vector{N: g, Inc: 1, Data: row})
		}
	})
}

// Close implements TrailDevice. The pool is owned by the caller.
func (d *CPUTrailDevice) Close() {}
