package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/flowtrails/config"
	"github.com/pthm-cable/flowtrails/systems"
)

func TestNewOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("expected nil manager for empty dir, got %v, %v", om, err)
	}
	// Methods are no-ops on a nil manager
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWrites(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		if err := om.WriteTelemetry(WindowStats{WindowEndTick: i * 100, FlowType: "left_to_right"}); err != nil {
			t.Fatal(err)
		}
		if err := om.WritePerf(PerfStats{}, i*100); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatal(err)
	}
	trail, _ := systems.NewTrail(8, 1, 1)
	path, err := om.WriteTrail(trail, 300)
	if err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end,sim_time,flow_type") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "300,") {
		t.Errorf("unexpected last row %q", lines[3])
	}

	perf, _ := os.ReadFile(filepath.Join(dir, "perf.csv"))
	if n := strings.Count(string(perf), "window_end"); n != 1 {
		t.Errorf("expected one perf header, got %d", n)
	}

	for _, p := range []string{filepath.Join(dir, "config.yaml"), path} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}
