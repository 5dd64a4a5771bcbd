package components

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlowType selects the rule that produces each agent's target direction.
type FlowType int

const (
	LeftToRight FlowType = iota
	CenterToOut
	RandomToRandom
	CenterToHorizontal
	HorizontalEdgesToCenter

	numFlowTypes
)

var flowTypeNames = [numFlowTypes]string{
	LeftToRight:             "left_to_right",
	CenterToOut:             "center_to_out",
	RandomToRandom:          "random_to_random",
	CenterToHorizontal:      "center_to_horizontal",
	HorizontalEdgesToCenter: "horizontal_edges_to_center",
}

// FlowTypes returns all flow types in enumeration order.
func FlowTypes() []FlowType {
	out := make([]FlowType, numFlowTypes)
	for i := range out {
		out[i] = FlowType(i)
	}
	return out
}

// Valid reports whether f names a known flow type.
func (f FlowType) Valid() bool {
	return f >= 0 && f < numFlowTypes
}

// Next returns the following flow type, wrapping after the last one.
func (f FlowType) Next() FlowType {
	return (f + 1) % numFlowTypes
}

func (f FlowType) String() string {
	if !f.Valid() {
		return fmt.Sprintf("FlowType(%d)", int(f))
	}
	return flowTypeNames[f]
}

// ParseFlowType accepts either the snake_case name ("center_to_out"),
// the CamelCase name ("CenterToOut") or the numeric value.
func ParseFlowType(s string) (FlowType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		f := FlowType(n)
		if !f.Valid() {
			return 0, fmt.Errorf("flow type %d out of range [0,%d]", n, numFlowTypes-1)
		}
		return f, nil
	}
	key := strings.ToLower(strings.ReplaceAll(s, "-", "_"))
	for i, name := range flowTypeNames {
		if key == name || key == strings.ReplaceAll(name, "_", "") {
			return FlowType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown flow type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f FlowType) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid flow type %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FlowType) UnmarshalText(text []byte) error {
	v, err := ParseFlowType(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// UnmarshalYAML lets config files use names or numbers.
func (f *FlowType) UnmarshalYAML(node *yaml.Node) error {
	return f.UnmarshalText([]byte(node.Value))
}

// MarshalYAML writes the snake_case name.
func (f FlowType) MarshalYAML() (any, error) {
	return f.String(), nil
}
