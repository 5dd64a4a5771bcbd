package components

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseFlowType(t *testing.T) {
	tests := []struct {
		in   string
		want FlowType
	}{
		{"left_to_right", LeftToRight},
		{"CenterToOut", CenterToOut},
		{"random-to-random", RandomToRandom},
		{"3", CenterToHorizontal},
		{" horizontal_edges_to_center ", HorizontalEdgesToCenter},
	}
	for _, tc := range tests {
		got, err := ParseFlowType(tc.in)
		if err != nil {
			t.Errorf("ParseFlowType(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFlowType(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseFlowTypeRejectsUnknown(t *testing.T) {
	for _, in := range []string{"sideways", "5", "-1", ""} {
		if _, err := ParseFlowType(in); err == nil {
			t.Errorf("ParseFlowType(%q): expected error", in)
		}
	}
}

func TestFlowTypeNextWraps(t *testing.T) {
	if HorizontalEdgesToCenter.Next() != LeftToRight {
		t.Errorf("expected wrap to LeftToRight, got %v", HorizontalEdgesToCenter.Next())
	}
	if len(FlowTypes()) != 5 {
		t.Errorf("expected 5 flow types, got %d", len(FlowTypes()))
	}
}

func TestFlowTypeYAML(t *testing.T) {
	var doc struct {
		Flow FlowType `yaml:"flow"`
	}
	if err := yaml.Unmarshal([]byte("flow: center_to_horizontal\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Flow != CenterToHorizontal {
		t.Errorf("expected CenterToHorizontal, got %v", doc.Flow)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "flow: center_to_horizontal\n" {
		t.Errorf("unexpected yaml %q", out)
	}
}
