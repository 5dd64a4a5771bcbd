package telemetry

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pthm-cable/flowtrails/systems"
)

// TrailImage renders the trail as a 16-bit grayscale image, mapping zero to
// black and the trail's maximum intensity to white.
func TrailImage(trail *systems.Trail) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, trail.Dim, trail.Dim))
	peak := trail.MaxIntensity()
	if peak <= 0 {
		return img
	}
	for y := 0; y < trail.Dim; y++ {
		for x := 0; x < trail.Dim; x++ {
			v := trail.At(x, y) / peak
			if v > 1 {
				v = 1
			}
			if v < 0 {
				v = 0
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v*0xffff + 0.5)})
		}
	}
	return img
}

// SaveTrailPNG writes the trail at tick to dir as a PNG.
// Returns the filepath where it was saved.
func SaveTrailPNG(trail *systems.Trail, dir string, tick int) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("trail_%06d.png", tick))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(f, TrailImage(trail)); err != nil {
		f.Close()
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
