package harness

import (
	"fmt"
	"strings"

	"github.com/tmcln/pointerhub/internal/aggregator"
)

// AssertionError is returned when an assertion fails. It includes the
// full trace so a failing scenario can be debugged from the error alone.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		name := event.Alias
		if name == "" {
			name = fmt.Sprintf("#%d", event.Pointer)
		}
		fmt.Fprintf(&buf, "  [%d] cycle %d %s %s (%g,%g)", i+1, event.Cycle, event.Category, name, event.X, event.Y)
		if event.Owner != "" {
			fmt.Fprintf(&buf, " owner=%s", event.Owner)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// CheckAssertions validates every assertion against the run result,
// returning the first failure.
func CheckAssertions(result *Result, scenario *Scenario) error {
	for i, assertion := range scenario.Assertions {
		if err := checkAssertion(result, assertion); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func checkAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertBatchOrder:
		return assertBatchOrder(result, a)
	case AssertBatchContains:
		return assertBatchContains(result, a)
	case AssertBatchCount:
		return assertBatchCount(result, a)
	case AssertLiveCount:
		return assertCount(result, a.Type, result.LiveCount, a.Count)
	case AssertPressedCount:
		return assertCount(result, a.Type, result.PressedCount, a.Count)
	case AssertDiagnosticCount:
		return assertDiagnosticCount(result, a)
	case AssertOwner:
		return assertOwner(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertBatchOrder checks that the non-empty categories of one cycle
// dispatched in exactly the given order.
func assertBatchOrder(result *Result, a Assertion) error {
	var got []string
	for _, event := range result.Trace {
		if event.Cycle != a.Cycle {
			continue
		}
		if len(got) == 0 || got[len(got)-1] != event.Category {
			got = append(got, event.Category)
		}
	}

	if len(got) != len(a.Categories) {
		return orderError(result, a, got)
	}
	for i, category := range a.Categories {
		if got[i] != category {
			return orderError(result, a, got)
		}
	}
	return nil
}

func orderError(result *Result, a Assertion, got []string) error {
	return &AssertionError{
		Type:     AssertBatchOrder,
		Expected: fmt.Sprintf("cycle %d categories %v", a.Cycle, a.Categories),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

// assertBatchContains checks that a pointer appeared in a cycle's
// category batch.
func assertBatchContains(result *Result, a Assertion) error {
	for _, event := range result.Trace {
		if event.Cycle == a.Cycle && event.Category == a.Category && event.Alias == a.ID {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertBatchContains,
		Expected: fmt.Sprintf("%s of %q in cycle %d", a.Category, a.ID, a.Cycle),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertBatchCount checks the total number of events a category
// dispatched over the whole run.
func assertBatchCount(result *Result, a Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Category == a.Category {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertBatchCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Category),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertCount(result *Result, what string, got, want int) error {
	if got != want {
		return &AssertionError{
			Type:     what,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDiagnosticCount checks how many diagnostics carried a code.
func assertDiagnosticCount(result *Result, a Assertion) error {
	got := result.DiagnosticCount(aggregator.Code(a.Code))
	if got != a.Count {
		return &AssertionError{
			Type:     AssertDiagnosticCount,
			Expected: fmt.Sprintf("%d diagnostics with code %s", a.Count, a.Code),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertOwner checks which layer claimed a pointer's press in a cycle.
func assertOwner(result *Result, a Assertion) error {
	for _, event := range result.Trace {
		if event.Cycle == a.Cycle && event.Category == "pressed" && event.Alias == a.ID {
			if event.Owner == a.Layer {
				return nil
			}
			return &AssertionError{
				Type:     AssertOwner,
				Expected: fmt.Sprintf("press of %q owned by %q", a.ID, a.Layer),
				Actual:   fmt.Sprintf("owned by %q", event.Owner),
				Trace:    result.Trace,
			}
		}
	}
	return &AssertionError{
		Type:     AssertOwner,
		Expected: fmt.Sprintf("press of %q in cycle %d", a.ID, a.Cycle),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}
