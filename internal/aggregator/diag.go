package aggregator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// Code categorizes diagnostics.
type Code string

const (
	// CodeStaleReference indicates a mutation targeted an identity that is
	// neither live nor pending-added this cycle. The request was dropped.
	CodeStaleReference Code = "STALE_REFERENCE"

	// CodeDuplicateSubmission indicates a second press/release/remove/
	// cancel for the same identity within one cycle. The duplicates
	// collapsed into the existing pending entry.
	CodeDuplicateSubmission Code = "DUPLICATE_SUBMISSION"

	// CodeUnclaimedPress indicates no layer claimed a press. The pointer
	// stays unpressed. Not an error; reported at verbose level only.
	CodeUnclaimedPress Code = "UNCLAIMED_PRESS"

	// CodeConsumerFault indicates a layer or subscriber callback panicked
	// during dispatch. The fault was isolated; dispatch continued.
	CodeConsumerFault Code = "CONSUMER_FAULT"

	// CodePoolGrowth indicates a pool allocated beyond its warm size.
	// Not fatal; a performance hazard.
	CodePoolGrowth Code = "POOL_GROWTH"

	// CodeDroppedMidCycle indicates a pending identity vanished before its
	// category replayed (removed by an earlier-ordered category in the
	// same cycle). The entry was skipped.
	CodeDroppedMidCycle Code = "DROPPED_MID_CYCLE"
)

// Diagnostic is a non-fatal reported anomaly. Nothing inside the
// aggregator aborts a cycle; anomalies degrade to "skip and report".
type Diagnostic struct {
	Code    Code
	Message string

	// Pointer is the affected identity, if any.
	Pointer pointer.ID

	// Category is the pending category involved, if any.
	Category Category

	// Cycle is the cycle the anomaly belongs to. Anomalies observed
	// during dispatch carry the cycle being dispatched; anomalies
	// observed while staging (stale references, collapsed duplicates,
	// pool growth) carry the upcoming cycle the staged work would
	// dispatch in.
	Cycle int64

	// Session is the aggregator's session token, for correlation across
	// logs and event-log records.
	Session string

	// Consumer names the layer or subscriber involved in a consumer fault.
	Consumer string
}

// Sink receives diagnostics.
//
// Report may be called from producer goroutines and from the dispatch
// goroutine, sometimes while aggregator locks are held: implementations
// must be fast, must not block, and must not call back into the
// aggregator.
type Sink interface {
	Report(Diagnostic)
}

// SlogSink logs diagnostics through a slog.Logger.
//
// Unclaimed presses log at Debug (verbose-only per the failure model),
// consumer faults at Error, everything else at Warn.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over the given logger.
// A nil logger falls back to slog.Default().
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Report implements Sink.
func (s *SlogSink) Report(d Diagnostic) {
	level := slog.LevelWarn
	switch d.Code {
	case CodeUnclaimedPress:
		level = slog.LevelDebug
	case CodeConsumerFault:
		level = slog.LevelError
	}

	s.logger.Log(context.Background(), level, d.Message,
		"code", string(d.Code),
		"pointer", int64(d.Pointer),
		"category", d.Category.String(),
		"cycle", d.Cycle,
		"session", d.Session,
		"consumer", d.Consumer,
	)
}

// CountingSink records diagnostics in memory.
// Used for testing and introspection.
type CountingSink struct {
	mu     sync.Mutex
	byCode map[Code]int
	all    []Diagnostic
}

// NewCountingSink creates an empty counting sink.
func NewCountingSink() *CountingSink {
	return &CountingSink{byCode: make(map[Code]int)}
}

// Report implements Sink.
func (s *CountingSink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCode[d.Code]++
	s.all = append(s.all, d)
}

// Count returns how many diagnostics carried the given code.
func (s *CountingSink) Count(code Code) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byCode[code]
}

// Total returns the number of diagnostics reported.
func (s *CountingSink) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

// All returns a copy of every reported diagnostic, in report order.
func (s *CountingSink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.all))
	copy(out, s.all)
	return out
}
