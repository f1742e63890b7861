package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures a scenario run for golden file comparison.
type TraceSnapshot struct {
	ScenarioName string
	Session      string
	Cycles       int64
	Trace        []TraceEvent
}

// toCanonicalMap converts the snapshot for canonical serialization.
// Every field serializes unconditionally so golden files stay stable
// as zero values come and go.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		traceList[i] = map[string]any{
			"alias":    event.Alias,
			"buttons":  event.Buttons,
			"category": event.Category,
			"cycle":    event.Cycle,
			"kind":     event.Kind,
			"owner":    event.Owner,
			"pointer":  event.Pointer,
			"prev_x":   event.PrevX,
			"prev_y":   event.PrevY,
			"x":        event.X,
			"y":        event.Y,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"session":       s.Session,
		"cycles":        s.Cycles,
		"trace":         traceList,
	}
}

// RunWithGolden executes a scenario, checks its assertions, and compares
// the trace against a golden file in testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := CheckAssertions(result, scenario); err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Session:      result.Session,
		Cycles:       result.Cycles,
		Trace:        result.Trace,
	}

	traceJSON, err := MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
