package harness

import (
	"github.com/tmcln/pointerhub/internal/aggregator"
)

// TraceEvent is one dispatched event observed during a scenario run.
type TraceEvent struct {
	// Cycle is the 1-based cycle the event dispatched in.
	Cycle int64

	// Category is the lowercase category name.
	Category string

	// Pointer is the identity the aggregator allocated.
	Pointer int64

	// Alias is the scenario's name for the pointer.
	Alias string

	Kind    string
	X       float32
	Y       float32
	PrevX   float32
	PrevY   float32
	Buttons int64

	// Owner names the owning layer at dispatch time, empty when the
	// pointer was not pressed.
	Owner string
}

// Result captures everything a scenario run produced.
type Result struct {
	// Trace lists dispatched events in dispatch order.
	Trace []TraceEvent

	// Diagnostics holds every reported diagnostic, in report order.
	Diagnostics []aggregator.Diagnostic

	// Aliases maps scenario pointer names to allocated identities.
	Aliases map[string]int64

	// LiveCount and PressedCount are the final registry counts.
	LiveCount    int
	PressedCount int

	// Cycles is the number of cycles executed.
	Cycles int64

	// Session is the session token the run used.
	Session string

	// PoolStats are the aggregator's final pool counters.
	PoolStats aggregator.PoolStats
}

// DiagnosticCount returns how many diagnostics carried the given code.
func (r *Result) DiagnosticCount(code aggregator.Code) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Code == code {
			n++
		}
	}
	return n
}
