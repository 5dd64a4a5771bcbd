//go:build !opencl

package compute

import "errors"

type openCLTrailDevice struct{}

func newOpenCLTrailDevice(dim, groupSize int) (*openCLTrailDevice, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}

func (d *openCLTrailDevice) Name() string { return "" }

func (d *openCLTrailDevice) Decay(trail []float32, dim int, keep float32) error {
	return errors.New("OpenCL trail device unavailable")
}

func (d *openCLTrailDevice) Close() {}
