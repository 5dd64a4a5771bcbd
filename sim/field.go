package sim

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/flowtrails/compute"
	"github.com/pthm-cable/flowtrails/config"
	"github.com/pthm-cable/flowtrails/systems"
)

// Field sources accepted in config.FieldConfig.Source.
const (
	FieldImage   = "image"
	FieldNoise   = "noise"
	FieldUniform = "uniform"
)

// NewField builds the vector field described by cfg. Noise fields rebuild
// their rows on pool, which may be nil.
func NewField(cfg config.FieldConfig, seed int64, pool *compute.Pool) (systems.FieldSampler, error) {
	switch cfg.Source {
	case FieldImage:
		if cfg.Path == "" {
			return nil, fmt.Errorf("image field without a path: %w", ErrMissingField)
		}
		f, err := systems.LoadImageField(cfg.Path)
		if err != nil {
			if errors.Is(err, systems.ErrEmptyField) {
				return nil, fmt.Errorf("loading vector field: %w: %w", ErrInvalidDimension, err)
			}
			return nil, fmt.Errorf("loading vector field: %w: %w", ErrMissingField, err)
		}
		return f, nil
	case FieldNoise:
		f, err := systems.NewNoiseField(cfg.Noise, seed, pool)
		if err != nil {
			if errors.Is(err, systems.ErrEmptyField) {
				return nil, fmt.Errorf("creating noise field: %w: %w", ErrInvalidDimension, err)
			}
			return nil, fmt.Errorf("creating noise field: %w", err)
		}
		return f, nil
	case FieldUniform:
		return systems.NewUniformField(cfg.Angle), nil
	case "":
		return nil, ErrMissingField
	}
	return nil, fmt.Errorf("unknown field source %q", cfg.Source)
}
