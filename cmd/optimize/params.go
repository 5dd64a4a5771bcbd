// Package main provides CMA-ES optimization for flowtrails parameters.
package main

import (
	"github.com/pthm-cable/flowtrails/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Blend (inertia locked at 0)
			{Name: "blend_field", Path: "blend.field", Min: 0, Max: 1, Default: 0.35},
			{Name: "blend_policy", Path: "blend.policy", Min: 0, Max: 1, Default: 0.5},
			{Name: "blend_enforcing", Path: "blend.enforcing", Min: 0, Max: 1, Default: 0.15},
			// Agents
			{Name: "speed", Path: "agents.speed", Min: 0.01, Max: 0.4, Default: 0.08},
			{Name: "speed_jitter", Path: "agents.speed_jitter", Min: 0, Max: 0.9, Default: 0.25},
			{Name: "enforcing_bias", Path: "agents.enforcing_bias", Min: 0, Max: 1, Default: 0.1},
			// Trail
			{Name: "decay", Path: "runtime.decay", Min: 0.001, Max: 0.2, Default: 0.01},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)

	cfg.Blend.Field = c[0]
	cfg.Blend.Policy = c[1]
	cfg.Blend.Enforcing = c[2]
	cfg.Blend.Inertia = 0
	cfg.Agents.Speed = c[3]
	cfg.Agents.SpeedJitter = c[4]
	cfg.Agents.EnforcingBias = c[5]
	cfg.Runtime.Decay = c[6]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Blend.Field,
		cfg.Blend.Policy,
		cfg.Blend.Enforcing,
		cfg.Agents.Speed,
		cfg.Agents.SpeedJitter,
		cfg.Agents.EnforcingBias,
		cfg.Runtime.Decay,
	}
}
