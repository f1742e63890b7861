package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcln/pointerhub/internal/aggregator"
)

const anomalyScenario = `
name: anomalies
description: stale references and conflicting removals degrade to skip-and-report
layers: [canvas]
hittest:
  f1: canvas
cycles:
  - steps:
      - add: {id: f1, kind: pen, x: 1, y: 1}
      - press: {raw: 99}
  - steps:
      - press: {id: f1}
      - press: {id: f1}
  - steps:
      - remove: {id: f1}
      - cancel: {id: f1}
assertions:
  - type: diagnostic_count
    code: STALE_REFERENCE
    count: 1
  - type: diagnostic_count
    code: DUPLICATE_SUBMISSION
    count: 1
  - type: diagnostic_count
    code: DROPPED_MID_CYCLE
    count: 1
  - type: batch_contains
    cycle: 3
    category: removed
    id: f1
  - type: batch_count
    category: cancelled
    count: 0
  - type: live_count
    count: 0
`

func TestRunCollectsTraceAndDiagnostics(t *testing.T) {
	s, err := ParseScenario([]byte(anomalyScenario))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Cycles)
	assert.Equal(t, DefaultSession, result.Session)
	assert.Equal(t, int64(1), result.Aliases["f1"])
	assert.Equal(t, 1, result.DiagnosticCount(aggregator.CodeStaleReference))

	require.NoError(t, CheckAssertions(result, s))
}

func TestRunOwnerRecordedInTrace(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/press-ownership.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.NoError(t, CheckAssertions(result, s))

	var pressed *TraceEvent
	for i := range result.Trace {
		if result.Trace[i].Category == "pressed" {
			pressed = &result.Trace[i]
		}
	}
	require.NotNil(t, pressed)
	assert.Equal(t, "overlay", pressed.Owner)
	assert.Equal(t, "f1", pressed.Alias)
	assert.Equal(t, int64(2), pressed.Cycle)
}

func TestRunIsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/press-ownership.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestRunSteadyStateDoesNotGrowPools(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/press-ownership.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.PoolStats.RecordsGrown)
	assert.Equal(t, int64(0), result.PoolStats.ContainersGrown)
}

func TestCheckAssertionsFailureCarriesTrace(t *testing.T) {
	s, err := ParseScenario([]byte(anomalyScenario))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	failing := &Scenario{
		Assertions: []Assertion{
			{Type: AssertLiveCount, Count: 7},
		},
	}
	err = CheckAssertions(result, failing)
	require.Error(t, err)

	var assertErr *AssertionError
	require.ErrorAs(t, err, &assertErr)
	assert.Equal(t, AssertLiveCount, assertErr.Type)
	assert.Equal(t, "7", assertErr.Expected)
	assert.Equal(t, "0", assertErr.Actual)
	assert.Contains(t, assertErr.Error(), "Full trace:")
	assert.NotEmpty(t, assertErr.Trace)
}

func TestCheckAssertionsBatchOrder(t *testing.T) {
	result := &Result{
		Trace: []TraceEvent{
			{Cycle: 1, Category: "added", Alias: "a"},
			{Cycle: 1, Category: "added", Alias: "b"},
			{Cycle: 1, Category: "pressed", Alias: "a"},
		},
	}

	ok := Assertion{Type: AssertBatchOrder, Cycle: 1, Categories: []string{"added", "pressed"}}
	assert.NoError(t, checkAssertion(result, ok))

	wrong := Assertion{Type: AssertBatchOrder, Cycle: 1, Categories: []string{"pressed", "added"}}
	assert.Error(t, checkAssertion(result, wrong))

	missing := Assertion{Type: AssertBatchOrder, Cycle: 2, Categories: []string{"added"}}
	assert.Error(t, checkAssertion(result, missing))
}
