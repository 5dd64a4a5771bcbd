package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/flowtrails/components"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	if cfg.Simulation.GroupSize != 8 {
		t.Errorf("expected group size 8, got %d", cfg.Simulation.GroupSize)
	}
	if cfg.Runtime.FlowType != components.LeftToRight {
		t.Errorf("expected default flow left_to_right, got %v", cfg.Runtime.FlowType)
	}
	if cfg.Runtime.Decay != 0.01 {
		t.Errorf("expected default decay 0.01, got %f", cfg.Runtime.Decay)
	}
	if cfg.Derived.AgentCount%cfg.Simulation.GroupSize != 0 {
		t.Errorf("derived agent count %d is not a multiple of %d", cfg.Derived.AgentCount, cfg.Simulation.GroupSize)
	}
	if cfg.Derived.Workers < 1 {
		t.Errorf("expected at least one worker, got %d", cfg.Derived.Workers)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("runtime:\n  flow_type: random_to_random\n  decay: 0.2\nsimulation:\n  agent_count: 3\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("loading user config: %v", err)
	}
	if cfg.Runtime.FlowType != components.RandomToRandom {
		t.Errorf("expected random_to_random, got %v", cfg.Runtime.FlowType)
	}
	if cfg.Runtime.Decay != 0.2 {
		t.Errorf("expected decay 0.2, got %f", cfg.Runtime.Decay)
	}
	// Untouched sections keep their defaults
	if cfg.Simulation.TextureDimension != 1024 {
		t.Errorf("expected default texture dimension 1024, got %d", cfg.Simulation.TextureDimension)
	}
	// 3 agents are raised to one full group
	if cfg.Derived.AgentCount != 8 {
		t.Errorf("expected agent count rounded to 8, got %d", cfg.Derived.AgentCount)
	}
}

func TestLoadRejectsBadFlowType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("runtime:\n  flow_type: sideways\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown flow type")
	}
}

func TestComputeDerivedRoundsUp(t *testing.T) {
	tests := []struct {
		count, group, want int
	}{
		{8, 8, 8},
		{9, 8, 16},
		{1, 8, 8},
		{0, 8, 8},
		{100, 32, 128},
	}
	for _, tc := range tests {
		cfg := Default()
		cfg.Simulation.AgentCount = tc.count
		cfg.Simulation.GroupSize = tc.group
		cfg.ComputeDerived()
		if cfg.Derived.AgentCount != tc.want {
			t.Errorf("count=%d group=%d: expected %d, got %d", tc.count, tc.group, tc.want, cfg.Derived.AgentCount)
		}
		if cfg.Derived.AgentGroups*tc.group != tc.want {
			t.Errorf("count=%d group=%d: groups %d do not cover %d agents", tc.count, tc.group, cfg.Derived.AgentGroups, tc.want)
		}
	}
}

func TestClampDecay(t *testing.T) {
	if ClampDecay(-0.5) != 0 || ClampDecay(1.5) != 1 || ClampDecay(0.3) != 0.3 {
		t.Error("ClampDecay did not clamp to [0,1]")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Runtime.FlowType = components.CenterToOut

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("writing yaml: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("reloading yaml: %v", err)
	}
	if back.Runtime.FlowType != components.CenterToOut {
		t.Errorf("expected center_to_out after reload, got %v", back.Runtime.FlowType)
	}
}
