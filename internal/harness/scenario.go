package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// Scenario defines a declarative pointer dispatch test.
// Scenarios drive the producer API cycle by cycle and assert on the
// resulting trace, diagnostics, and final counts.
type Scenario struct {
	// Name uniquely identifies this scenario (also the golden file name).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Layers is the ordered layer stack, topmost first, by name.
	Layers []string `yaml:"layers"`

	// HitTest maps pointer aliases to the layer that claims their
	// presses. Aliases absent from the table press unclaimed.
	HitTest map[string]string `yaml:"hittest,omitempty"`

	// Cycles lists the cycles to execute. Each cycle stages its steps
	// through the producer API and then ticks once.
	Cycles []Cycle `yaml:"cycles"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`

	// Session is an optional fixed session token.
	// Defaults to "scenario-session-default".
	Session string `yaml:"session,omitempty"`

	// WarmPointers optionally overrides the record pool warm size.
	WarmPointers int `yaml:"warm_pointers,omitempty"`
}

// Cycle is one scheduled cycle: steps staged before the tick.
// An empty step list is valid and exercises an empty cycle.
type Cycle struct {
	Steps []Step `yaml:"steps"`
}

// Step is one producer call. Exactly one of the fields must be set.
type Step struct {
	Add     *AddStep    `yaml:"add,omitempty"`
	Update  *UpdateStep `yaml:"update,omitempty"`
	Press   *RefStep    `yaml:"press,omitempty"`
	Release *RefStep    `yaml:"release,omitempty"`
	Remove  *RefStep    `yaml:"remove,omitempty"`
	Cancel  *RefStep    `yaml:"cancel,omitempty"`
}

// AddStep registers a new pointer under an alias.
type AddStep struct {
	// ID is the scenario-local alias later steps refer to.
	ID string `yaml:"id"`

	// Kind is the device kind name: mouse, touch, or pen.
	Kind string `yaml:"kind"`

	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`

	// Buttons lists initially held buttons by name.
	Buttons []string `yaml:"buttons,omitempty"`
}

// UpdateStep stages a position/state change for an aliased pointer.
type UpdateStep struct {
	ID string  `yaml:"id"`
	X  float32 `yaml:"x"`
	Y  float32 `yaml:"y"`

	Buttons []string `yaml:"buttons,omitempty"`
}

// RefStep references a pointer for press/release/remove/cancel.
// Either ID (an alias) or Raw (a literal identity, for stale-reference
// scenarios) must be set.
type RefStep struct {
	ID  string `yaml:"id,omitempty"`
	Raw int64  `yaml:"raw,omitempty"`
}

// Assertion validates one aspect of a finished run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "batch_order": non-empty categories of a cycle appear in order
	// - "batch_contains": a pointer appears in a cycle's category batch
	// - "batch_count": a category dispatched exactly N events over the run
	// - "live_count": final live pointer count
	// - "pressed_count": final pressed pointer count
	// - "diagnostic_count": diagnostics with a code occurred exactly N times
	// - "owner": a pointer's press was claimed by a named layer
	Type string `yaml:"type"`

	// Cycle scopes batch_order, batch_contains, and owner to one cycle.
	Cycle int64 `yaml:"cycle,omitempty"`

	// Categories is the expected order (batch_order).
	Categories []string `yaml:"categories,omitempty"`

	// Category selects a category (batch_contains, batch_count).
	Category string `yaml:"category,omitempty"`

	// ID is a pointer alias (batch_contains, owner).
	ID string `yaml:"id,omitempty"`

	// Layer is the expected owning layer (owner).
	Layer string `yaml:"layer,omitempty"`

	// Code is a diagnostic code (diagnostic_count).
	Code string `yaml:"code,omitempty"`

	// Count is the expected number of occurrences
	// (batch_count, live_count, pressed_count, diagnostic_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertBatchOrder      = "batch_order"
	AssertBatchContains   = "batch_contains"
	AssertBatchCount      = "batch_count"
	AssertLiveCount       = "live_count"
	AssertPressedCount    = "pressed_count"
	AssertDiagnosticCount = "diagnostic_count"
	AssertOwner           = "owner"
)

// DefaultSession is the session token used when a scenario does not pin
// one, keeping golden files deterministic.
const DefaultSession = "scenario-session-default"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation
// (catches typos like "assertion:" vs "assertions:").
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Layers) == 0 {
		return fmt.Errorf("layers list is required and must be non-empty")
	}
	if len(s.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	layerNames := make(map[string]bool, len(s.Layers))
	for i, name := range s.Layers {
		if name == "" {
			return fmt.Errorf("layers[%d]: name must be non-empty", i)
		}
		if layerNames[name] {
			return fmt.Errorf("layers[%d]: duplicate layer %q", i, name)
		}
		layerNames[name] = true
	}

	for alias, layer := range s.HitTest {
		if !layerNames[layer] {
			return fmt.Errorf("hittest[%q]: unknown layer %q", alias, layer)
		}
	}

	aliases := make(map[string]bool)
	for c, cycle := range s.Cycles {
		for i, step := range cycle.Steps {
			if err := validateStep(c, i, &step, aliases); err != nil {
				return err
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, aliases, layerNames); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks a step has exactly one operation and references
// only known aliases. Aliases are scoped to submission order, so a step
// may reference a pointer added earlier in the same cycle.
func validateStep(cycle, index int, step *Step, aliases map[string]bool) error {
	where := fmt.Sprintf("cycles[%d].steps[%d]", cycle, index)

	set := 0
	if step.Add != nil {
		set++
	}
	if step.Update != nil {
		set++
	}
	if step.Press != nil {
		set++
	}
	if step.Release != nil {
		set++
	}
	if step.Remove != nil {
		set++
	}
	if step.Cancel != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%s: exactly one operation is required, got %d", where, set)
	}

	switch {
	case step.Add != nil:
		if step.Add.ID == "" {
			return fmt.Errorf("%s: add requires an id", where)
		}
		if aliases[step.Add.ID] {
			return fmt.Errorf("%s: duplicate alias %q", where, step.Add.ID)
		}
		if _, err := pointer.ParseDeviceKind(step.Add.Kind); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if _, err := parseButtons(step.Add.Buttons); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		aliases[step.Add.ID] = true

	case step.Update != nil:
		if !aliases[step.Update.ID] {
			return fmt.Errorf("%s: unknown alias %q", where, step.Update.ID)
		}
		if _, err := parseButtons(step.Update.Buttons); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}

	default:
		ref := step.Press
		if step.Release != nil {
			ref = step.Release
		}
		if step.Remove != nil {
			ref = step.Remove
		}
		if step.Cancel != nil {
			ref = step.Cancel
		}
		if ref.ID == "" && ref.Raw == 0 {
			return fmt.Errorf("%s: id or raw is required", where)
		}
		if ref.ID != "" && ref.Raw != 0 {
			return fmt.Errorf("%s: id and raw are mutually exclusive", where)
		}
		if ref.ID != "" && !aliases[ref.ID] {
			return fmt.Errorf("%s: unknown alias %q", where, ref.ID)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, aliases, layers map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBatchOrder:
		if a.Cycle <= 0 {
			return fmt.Errorf("assertions[%d]: cycle is required for batch_order", index)
		}
		if len(a.Categories) == 0 {
			return fmt.Errorf("assertions[%d]: categories list is required for batch_order", index)
		}
	case AssertBatchContains:
		if a.Cycle <= 0 {
			return fmt.Errorf("assertions[%d]: cycle is required for batch_contains", index)
		}
		if a.Category == "" {
			return fmt.Errorf("assertions[%d]: category is required for batch_contains", index)
		}
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for batch_contains", index)
		}
		if !aliases[a.ID] {
			return fmt.Errorf("assertions[%d]: unknown alias %q", index, a.ID)
		}
	case AssertBatchCount:
		if a.Category == "" {
			return fmt.Errorf("assertions[%d]: category is required for batch_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertLiveCount, AssertPressedCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertDiagnosticCount:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertOwner:
		if a.Cycle <= 0 {
			return fmt.Errorf("assertions[%d]: cycle is required for owner", index)
		}
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for owner", index)
		}
		if !aliases[a.ID] {
			return fmt.Errorf("assertions[%d]: unknown alias %q", index, a.ID)
		}
		if a.Layer == "" {
			return fmt.Errorf("assertions[%d]: layer is required for owner", index)
		}
		if !layers[a.Layer] {
			return fmt.Errorf("assertions[%d]: unknown layer %q", index, a.Layer)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// parseButtons converts button names to a bitmask.
func parseButtons(names []string) (pointer.Buttons, error) {
	var b pointer.Buttons
	for _, name := range names {
		switch name {
		case "primary":
			b |= pointer.ButtonPrimary
		case "secondary":
			b |= pointer.ButtonSecondary
		case "tertiary":
			b |= pointer.ButtonTertiary
		case "fourth":
			b |= pointer.ButtonFourth
		case "fifth":
			b |= pointer.ButtonFifth
		case "eraser":
			b |= pointer.PenEraser
		default:
			return 0, fmt.Errorf("unknown button %q", name)
		}
	}
	return b, nil
}
