package systems

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"

	// Registered decoders for vector field images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrEmptyField is returned for vector field images without pixels.
var ErrEmptyField = errors.New("vector field has zero size")

// ImageField is a static vector field decoded from an image. The green
// channel encodes the angle: 0 maps to 0 and full intensity approaches 2*pi.
type ImageField struct {
	w, h int
	dirs []r2.Vec // row-major, precomputed from the green channel
}

// LoadImageField decodes the image at path into a vector field.
func LoadImageField(path string) (*ImageField, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vector field: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding vector field: %w", err)
	}
	field, err := NewImageField(img)
	if err != nil {
		return nil, fmt.Errorf("%s image %s: %w", format, path, err)
	}
	return field, nil
}

// GreenAngle maps a 16-bit green value to an angle: 0 is 0 and full scale
// is 2*pi, so an 8-bit value b decodes to b/255 * 2*pi.
func GreenAngle(g uint32) float64 {
	return float64(g) / 0xffff * 2 * math.Pi
}

// AngleGreen is the inverse of GreenAngle for angles in [0, 2*pi).
func AngleGreen(angle float64) uint16 {
	a := math.Mod(angle, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return uint16(math.Round(a / (2 * math.Pi) * 0xffff))
}

// NewImageField builds a vector field from img.
func NewImageField(img image.Image) (*ImageField, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyField
	}

	f := &ImageField{w: w, h: h, dirs: make([]r2.Vec, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_, g, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			f.dirs[y*w+x] = angleDir(GreenAngle(g))
		}
	}
	return f, nil
}

// Size implements FieldSampler.
func (f *ImageField) Size() (int, int) { return f.w, f.h }

// Direction implements FieldSampler using the nearest texel.
func (f *ImageField) Direction(u, v float64) r2.Vec {
	return f.dirs[texel(v, f.h)*f.w+texel(u, f.w)]
}
