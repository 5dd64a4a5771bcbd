package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/components"
	"github.com/pthm-cable/flowtrails/compute"
)

func newTestTrail(t *testing.T, dim int) (*Trail, compute.TrailDevice) {
	t.Helper()
	trail, err := NewTrail(dim, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	dev, err := compute.NewTrailDevice(compute.BackendCPU, newTestPool(t), dim, 8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(dev.Close)
	return trail, dev
}

// fill writes a deterministic pattern into the trail.
func fill(trail *Trail) {
	for i := range trail.Cells {
		trail.Cells[i] = float32(i%7) * 0.5
	}
}

func TestNewTrailRejectsBadDimension(t *testing.T) {
	for _, dim := range []int{0, -8} {
		if _, err := NewTrail(dim, 1, 1); err == nil {
			t.Errorf("NewTrail(%d): expected error", dim)
		}
	}
}

func TestDecayOnlyTendsToZero(t *testing.T) {
	trail, dev := newTestTrail(t, 32)
	fill(trail)

	prev := trail.Total()
	for tick := 0; tick < 2000; tick++ {
		if err := trail.Decay(dev, 0.05); err != nil {
			t.Fatal(err)
		}
		sum := trail.Total()
		if sum > prev {
			t.Fatalf("tick %d: sum increased from %f to %f", tick, prev, sum)
		}
		prev = sum
	}
	if prev > 1e-6 {
		t.Errorf("expected sum to approach zero, got %g", prev)
	}
}

func TestDecayZeroIsIdempotent(t *testing.T) {
	trail, dev := newTestTrail(t, 16)
	fill(trail)
	before := append([]float32(nil), trail.Cells...)

	for i := 0; i < 10; i++ {
		if err := trail.Decay(dev, 0); err != nil {
			t.Fatal(err)
		}
	}
	for i := range before {
		if trail.Cells[i] != before[i] {
			t.Fatalf("cell %d changed from %f to %f", i, before[i], trail.Cells[i])
		}
	}
}

func TestDecayOneZeroes(t *testing.T) {
	trail, dev := newTestTrail(t, 16)
	fill(trail)

	if err := trail.Decay(dev, 1); err != nil {
		t.Fatal(err)
	}
	if sum := trail.Total(); sum != 0 {
		t.Errorf("expected empty trail, got sum %f", sum)
	}
}

func TestDecayScalesEveryCell(t *testing.T) {
	trail, dev := newTestTrail(t, 24)
	fill(trail)
	before := append([]float32(nil), trail.Cells...)

	if err := trail.Decay(dev, 0.25); err != nil {
		t.Fatal(err)
	}
	for i := range before {
		want := before[i] * 0.75
		if math.Abs(float64(trail.Cells[i]-want)) > 1e-6 {
			t.Fatalf("cell %d: expected %f, got %f", i, want, trail.Cells[i])
		}
	}
}

func TestDepositSaturates(t *testing.T) {
	trail, err := NewTrail(8, 1, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	agents := []components.Agent{
		{Pos: r2.Vec{X: 0.1, Y: 0.1}},
		{Pos: r2.Vec{X: 0.1, Y: 0.1}},
		{Pos: r2.Vec{X: 0.12, Y: 0.1}}, // same cell
		{Pos: r2.Vec{X: 0.99, Y: 0.5}},
	}
	trail.Deposit(agents)

	if got := trail.At(0, 0); got != 2.5 {
		t.Errorf("expected shared cell saturated at 2.5, got %f", got)
	}
	if got := trail.At(7, 4); got != 1 {
		t.Errorf("expected single deposit of 1, got %f", got)
	}
	if got := trail.Total(); got != 3.5 {
		t.Errorf("expected total 3.5, got %f", got)
	}
	if got := trail.Peak(); got != trail.MaxIntensity() {
		t.Errorf("expected peak %f, got %f", trail.MaxIntensity(), got)
	}
	if got := trail.Coverage(0); got != 2.0/64 {
		t.Errorf("expected coverage %f, got %f", 2.0/64, got)
	}
}

func BenchmarkTrailDecay(b *testing.B) {
	pool := compute.NewPool(0, 0)
	defer pool.Close()
	trail, _ := NewTrail(1024, 1, 1)
	dev := compute.NewCPUTrailDevice(pool, 8)
	fill(trail)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trail.Decay(dev, 0.01)
	}
}
