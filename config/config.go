// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flowtrails/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation   SimulationConfig   `yaml:"simulation"`
	Runtime      RuntimeConfig      `yaml:"runtime"`
	Agents       AgentsConfig       `yaml:"agents"`
	Blend        BlendConfig        `yaml:"blend"`
	RandomTarget RandomTargetConfig `yaml:"random_target"`
	Trail        TrailConfig        `yaml:"trail"`
	Field        FieldConfig        `yaml:"field"`
	Compute      ComputeConfig      `yaml:"compute"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the values fixed at initialization.
type SimulationConfig struct {
	AgentCount          int     `yaml:"agent_count"`       // Rounded up to a multiple of GroupSize
	TextureDimension    int     `yaml:"texture_dimension"` // Trail is TextureDimension x TextureDimension
	GroupSize           int     `yaml:"group_size"`        // Thread-group size for every dispatch
	DT                  float64 `yaml:"dt"`                // Seconds per tick
	Seed                int64   `yaml:"seed"`
	MaxAgents           int     `yaml:"max_agents"`
	MaxTextureDimension int     `yaml:"max_texture_dimension"`
}

// RuntimeConfig holds the values that may change every tick.
type RuntimeConfig struct {
	FlowType components.FlowType `yaml:"flow_type"`
	Decay    float64             `yaml:"decay"` // [0,1], fraction of trail lost per tick
}

// AgentsConfig controls agent initialization.
type AgentsConfig struct {
	Speed         float64 `yaml:"speed"`          // Normalized units per second
	SpeedJitter   float64 `yaml:"speed_jitter"`   // Relative +/- spread around Speed
	SpawnInset    float64 `yaml:"spawn_inset"`    // Agents spawn in [inset, 1-inset)
	EnforcingBias float64 `yaml:"enforcing_bias"` // Magnitude of the random per-agent bias (0 = none)
}

// BlendConfig holds the weights combining the direction sources into a velocity.
type BlendConfig struct {
	Field     float64 `yaml:"field"`
	Policy    float64 `yaml:"policy"`
	Enforcing float64 `yaml:"enforcing"`
	Inertia   float64 `yaml:"inertia"` // Weight of the previous velocity
}

// RandomTargetConfig controls target refresh for the random_to_random flow.
type RandomTargetConfig struct {
	ArrivalRadius float64 `yaml:"arrival_radius"`
	MaxTicks      int     `yaml:"max_ticks"` // Re-roll after this many ticks (0 = only on arrival)
}

// TrailConfig holds deposit parameters.
type TrailConfig struct {
	Deposit      float64 `yaml:"deposit"`
	MaxIntensity float64 `yaml:"max_intensity"`
}

// FieldConfig selects and configures the vector field source.
type FieldConfig struct {
	Source string           `yaml:"source"` // image, noise or uniform
	Path   string           `yaml:"path"`   // Image path when Source is image
	Angle  float64          `yaml:"angle"`  // Radians, when Source is uniform
	Noise  NoiseFieldConfig `yaml:"noise"`
}

// NoiseFieldConfig holds animated noise field parameters.
type NoiseFieldConfig struct {
	Kind         string  `yaml:"kind"` // perlin or simplex
	Width        int     `yaml:"width"`
	Height       int     `yaml:"height"`
	Scale        float64 `yaml:"scale"`   // Noise frequency across the field
	Alpha        float64 `yaml:"alpha"`   // Perlin weight divisor
	Beta         float64 `yaml:"beta"`    // Perlin harmonic scaling
	Octaves      int     `yaml:"octaves"` // Perlin iterations
	TimeStep     float64 `yaml:"time_step"`
	StepsPerTick int     `yaml:"steps_per_tick"` // 1..16
}

// ComputeConfig selects the dispatch backend.
type ComputeConfig struct {
	Backend           string `yaml:"backend"` // cpu or opencl
	Workers           int    `yaml:"workers"` // 0 = GOMAXPROCS
	ParallelThreshold int    `yaml:"parallel_threshold"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow   int `yaml:"stats_window"`   // Ticks per stats and perf window
	SnapshotEvery int `yaml:"snapshot_every"` // Ticks between trail PNGs (0 = off)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	AgentCount  int // AgentCount rounded up to a multiple of GroupSize
	AgentGroups int // AgentCount / GroupSize
	TrailGroups int // TextureDimension / GroupSize, per axis
	Workers     int
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()

	return cfg, nil
}

// ComputeDerived recalculates values derived from the loaded config.
// Call again after mutating a Config in place.
func (c *Config) ComputeDerived() {
	group := c.Simulation.GroupSize
	if group < 1 {
		group = 1
	}

	// Pools are processed in whole thread-groups: never fewer agents than one
	// group, and always a multiple of the group size.
	n := c.Simulation.AgentCount
	if n < group {
		n = group
	}
	if rem := n % group; rem != 0 {
		n += group - rem
	}
	c.Derived.AgentCount = n
	c.Derived.AgentGroups = n / group
	c.Derived.TrailGroups = c.Simulation.TextureDimension / group

	c.Derived.Workers = c.Compute.Workers
	if c.Derived.Workers <= 0 {
		c.Derived.Workers = runtime.GOMAXPROCS(0)
	}
}

// ClampDecay limits a decay factor to [0,1].
func ClampDecay(d float64) float64 {
	switch {
	case d < 0:
		return 0
	case d > 1:
		return 1
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
