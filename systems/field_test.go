package systems

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowtrails/compute"
	"github.com/pthm-cable/flowtrails/config"
)

func vecNear(a, b r2.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol
}

func TestUniformField(t *testing.T) {
	f := NewUniformField(math.Pi / 2)
	got := f.Direction(0.3, 0.9)
	if !vecNear(got, r2.Vec{X: 0, Y: 1}, 1e-9) {
		t.Errorf("expected (0,1), got %v", got)
	}
	if w, h := f.Size(); w != 1 || h != 1 {
		t.Errorf("expected 1x1, got %dx%d", w, h)
	}
}

// greenImage builds a 2x2 image with the given green values, row-major.
func greenImage(g [4]uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i, v := range g {
		img.Set(i%2, i/2, color.RGBA{G: v, A: 255})
	}
	return img
}

func TestImageFieldDecodesGreenAngle(t *testing.T) {
	greens := [4]uint8{0, 64, 128, 192}
	f, err := NewImageField(greenImage(greens))
	if err != nil {
		t.Fatalf("creating field: %v", err)
	}

	samples := [4][2]float64{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}, {0.75, 0.75}}
	for i, uv := range samples {
		want := angleDir(float64(greens[i]) / 255 * 2 * math.Pi)
		got := f.Direction(uv[0], uv[1])
		if !vecNear(got, want, 1e-9) {
			t.Errorf("Direction(%v,%v) green %d: expected %v, got %v", uv[0], uv[1], greens[i], want, got)
		}
	}
}

func TestImageFieldDecodes16BitGreen(t *testing.T) {
	img := image.NewNRGBA64(image.Rect(0, 0, 4, 1))
	for i, g := range []uint16{0, 0x4000, 0x8000, 0xffff} {
		img.SetNRGBA64(i, 0, color.NRGBA64{G: g, A: 0xffff})
	}
	f, err := NewImageField(img)
	if err != nil {
		t.Fatalf("creating field: %v", err)
	}

	tests := []struct {
		u    float64
		want r2.Vec
	}{
		{0.125, r2.Vec{X: 1, Y: 0}},  // 0
		{0.375, r2.Vec{X: 0, Y: 1}},  // ~pi/2
		{0.625, r2.Vec{X: -1, Y: 0}}, // ~pi
		{0.875, r2.Vec{X: 1, Y: 0}},  // full scale wraps to 0
	}
	for _, tc := range tests {
		if got := f.Direction(tc.u, 0.5); !vecNear(got, tc.want, 1e-3) {
			t.Errorf("Direction(%v): expected %v, got %v", tc.u, tc.want, got)
		}
	}
}

func TestAngleGreenRoundTrip(t *testing.T) {
	for _, a := range []float64{0, 0.5, math.Pi / 2, math.Pi, 4, 2*math.Pi - 1e-3, -math.Pi / 2} {
		want := math.Mod(a+2*math.Pi, 2*math.Pi)
		got := GreenAngle(uint32(AngleGreen(a)))
		if math.Abs(got-want) > 2*math.Pi/0xffff {
			t.Errorf("angle %v: expected %v after round trip, got %v", a, want, got)
		}
	}
}

func TestImageFieldClampsCoordinates(t *testing.T) {
	f, err := NewImageField(greenImage([4]uint8{0, 64, 128, 192}))
	if err != nil {
		t.Fatal(err)
	}
	// Out of range samples land on the border texels instead of faulting
	if got := f.Direction(-3, -3); !vecNear(got, f.Direction(0, 0), 0) {
		t.Errorf("negative coords: expected top-left texel, got %v", got)
	}
	if got := f.Direction(1, 1); !vecNear(got, f.Direction(0.99, 0.99), 0) {
		t.Errorf("coords at 1: expected bottom-right texel, got %v", got)
	}
}

func TestImageFieldRejectsEmpty(t *testing.T) {
	_, err := NewImageField(image.NewRGBA(image.Rect(0, 0, 0, 4)))
	if !errors.Is(err, ErrEmptyField) {
		t.Errorf("expected ErrEmptyField, got %v", err)
	}
}

func TestLoadImageField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.png")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(out, greenImage([4]uint8{64, 64, 64, 64})); err != nil {
		t.Fatal(err)
	}
	out.Close()

	f, err := LoadImageField(path)
	if err != nil {
		t.Fatalf("loading field: %v", err)
	}
	if w, h := f.Size(); w != 2 || h != 2 {
		t.Errorf("expected 2x2, got %dx%d", w, h)
	}
	if got := f.Direction(0.5, 0.5); !vecNear(got, r2.Vec{X: 0, Y: 1}, 0.01) {
		t.Errorf("expected (0,1), got %v", got)
	}

	if _, err := LoadImageField(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func noiseConfig(kind string) config.NoiseFieldConfig {
	cfg := config.Cfg().Field.Noise
	cfg.Kind = kind
	cfg.Width = 32
	cfg.Height = 16
	return cfg
}

func TestNoiseFieldDeterministic(t *testing.T) {
	for _, kind := range []string{NoisePerlin, NoiseSimplex} {
		a, err := NewNoiseField(noiseConfig(kind), 7, nil)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		pool := compute.NewPool(4, 1)
		b, err := NewNoiseField(noiseConfig(kind), 7, pool)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		for y := 0; y < 16; y++ {
			for x := 0; x < 32; x++ {
				u, v := (float64(x)+0.5)/32, (float64(y)+0.5)/16
				if !vecNear(a.Direction(u, v), b.Direction(u, v), 1e-12) {
					t.Fatalf("%s: inline and pooled builds differ at (%d,%d)", kind, x, y)
				}
				if d := r2.Norm(a.Direction(u, v)); math.Abs(d-1) > 1e-9 {
					t.Fatalf("%s: direction at (%d,%d) is not unit: %f", kind, x, y, d)
				}
			}
		}
		pool.Close()
	}
}

func TestNoiseFieldStepAnimates(t *testing.T) {
	f, err := NewNoiseField(noiseConfig(NoiseSimplex), 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := make([]r2.Vec, len(f.dirs))
	copy(before, f.dirs)

	f.Step(0)
	if f.Time() != 0 {
		t.Errorf("Step(0) should not advance time, got %f", f.Time())
	}

	f.Step(100)
	if want := float64(MaxStepsPerTick) * noiseConfig(NoiseSimplex).TimeStep; math.Abs(f.Time()-want) > 1e-12 {
		t.Errorf("expected steps clamped to %d (time %f), got time %f", MaxStepsPerTick, want, f.Time())
	}

	changed := 0
	for i := range before {
		if !vecNear(before[i], f.dirs[i], 1e-9) {
			changed++
		}
	}
	if changed == 0 {
		t.Error("expected the field to change after stepping")
	}
}

func TestNoiseFieldRejectsBadConfig(t *testing.T) {
	if _, err := NewNoiseField(noiseConfig("worley"), 1, nil); err == nil {
		t.Error("expected error for unknown noise kind")
	}
	cfg := noiseConfig(NoisePerlin)
	cfg.Width = 0
	if _, err := NewNoiseField(cfg, 1, nil); !errors.Is(err, ErrEmptyField) {
		t.Errorf("expected ErrEmptyField, got %v", err)
	}
}
