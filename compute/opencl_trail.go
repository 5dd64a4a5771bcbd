//go:build opencl

package compute

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

const trailKernelSource = `__kernel void decay_trail(
    __global float* trail,
    const int dim,
    const float keep)
{
    int x = get_global_id(0);
    int y = get_global_id(1);
    if (x >= dim || y >= dim) {
        return;
    }
    trail[y * dim + x] *= keep;
}`

type openCLTrailDevice struct {
	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	trailBuf   *cl.MemObject
	dim        int
	groupSize  int
	deviceName string
}

func newOpenCLTrailDevice(dim, groupSize int) (*openCLTrailDevice, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available")
	}
	device := pickDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = pickDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	d := &openCLTrailDevice{dim: dim, groupSize: groupSize, deviceName: device.Name()}

	d.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	d.queue, err = d.context.CreateCommandQueue(device, 0)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	d.program, err = d.context.CreateProgramWithSource([]string{trailKernelSource})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := d.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		d.Close()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	d.kernel, err = d.program.CreateKernel("decay_trail")
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("creating decay kernel: %w", err)
	}

	byteSize := dim * dim * int(unsafe.Sizeof(float32(0)))
	d.trailBuf, err = d.context.CreateEmptyBuffer(cl.MemReadWrite, byteSize)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("allocating trail buffer: %w", err)
	}

	if err := d.kernel.SetArgs(d.trailBuf, int32(dim), float32(1)); err != nil {
		d.Close()
		return nil, fmt.Errorf("setting kernel arguments: %w", err)
	}
	return d, nil
}

func pickDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && err != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

func (d *openCLTrailDevice) Name() string { return "opencl:" + d.deviceName }

// Decay uploads the host trail, runs one work-item per cell in
// groupSize x groupSize work-groups and reads the result back.
func (d *openCLTrailDevice) Decay(trail []float32, dim int, keep float32) error {
	if dim != d.dim || len(trail) != dim*dim {
		return fmt.Errorf("trail buffer has %d cells, device expects %d", len(trail), d.dim*d.dim)
	}
	if _, err := d.queue.EnqueueWriteBufferFloat32(d.trailBuf, false, 0, trail, nil); err != nil {
		return fmt.Errorf("writing trail buffer: %w", err)
	}
	if err := d.kernel.SetArgFloat32(2, keep); err != nil {
		return fmt.Errorf("setting decay factor: %w", err)
	}
	global := []int{dim, dim}
	local := []int{d.groupSize, d.groupSize}
	if _, err := d.queue.EnqueueNDRangeKernel(d.kernel, nil, global, local, nil); err != nil {
		return fmt.Errorf("enqueueing decay kernel: %w", err)
	}
	if _, err := d.queue.EnqueueReadBufferFloat32(d.trailBuf, true, 0, trail, nil); err != nil {
		return fmt.Errorf("reading trail buffer: %w", err)
	}
	return nil
}

// Close releases device objects in reverse creation order. Safe to call
// on a partially constructed device and more than once.
func (d *openCLTrailDevice) Close() {
	if d.trailBuf != nil {
		d.trailBuf.Release()
		d.trailBuf = nil
	}
	if d.kernel != nil {
		d.kernel.Release()
		d.kernel = nil
	}
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.context != nil {
		d.context.Release()
		d.context = nil
	}
}
