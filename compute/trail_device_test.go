package compute

import (
	"math"
	"testing"
)

func TestCPUTrailDeviceDecay(t *testing.T) {
	pool := NewPool(4, 1)
	defer pool.Close()

	const dim = 32
	dev, err := NewTrailDevice(BackendCPU, pool, dim, 8)
	if err != nil {
		t.Fatalf("creating device: %v", err)
	}
	defer dev.Close()

	trail := make([]float32, dim*dim)
	for i := range trail {
		trail[i] = float32(i%7) * 0.1
	}
	want := make([]float32, len(trail))
	for i, v := range trail {
		want[i] = v * 0.75
	}

	if err := dev.Decay(trail, dim, 0.75); err != nil {
		t.Fatalf("decay: %v", err)
	}
	for i := range trail {
		if math.Abs(float64(trail[i]-want[i])) > 1e-6 {
			t.Fatalf("cell %d: expected %f, got %f", i, want[i], trail[i])
		}
	}
}

func TestCPUTrailDeviceRejectsWrongSize(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()

	dev := NewCPUTrailDevice(pool, 8)
	if err := dev.Decay(make([]float32, 10), 8, 0.5); err == nil {
		t.Error("expected error for mismatched buffer size")
	}
}

func TestNewTrailDeviceUnknownBackend(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()

	if _, err := NewTrailDevice("vulkan", pool, 8, 8); err == nil {
		t.Error("expected error for unknown backend")
	}
}
