// Package testutil provides recording consumers for aggregator tests and
// the scenario harness.
package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// RecordingLayer implements every layer capability and records each
// delivery as "op:id" (for example "press:2"). Safe for concurrent use.
//
// Set PanicOn to an op name ("add", "update", "press", "release",
// "remove", "cancel") to make that callback panic, for fault-isolation
// tests.
type RecordingLayer struct {
	LayerName string
	PanicOn   string

	mu    sync.Mutex
	calls []string
}

// NewRecordingLayer creates a recording layer with the given name.
func NewRecordingLayer(name string) *RecordingLayer {
	return &RecordingLayer{LayerName: name}
}

// Name implements pointer.Layer.
func (l *RecordingLayer) Name() string { return l.LayerName }

func (l *RecordingLayer) record(op string, p *pointer.Pointer) {
	if l.PanicOn == op {
		panic(fmt.Sprintf("%s: induced %s fault", l.LayerName, op))
	}
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf("%s:%d", op, p.ID))
	l.mu.Unlock()
}

// ReceiveAdd implements pointer.AddReceiver.
func (l *RecordingLayer) ReceiveAdd(p *pointer.Pointer) { l.record("add", p) }

// ReceiveUpdate implements pointer.UpdateReceiver.
func (l *RecordingLayer) ReceiveUpdate(p *pointer.Pointer) { l.record("update", p) }

// ReceivePress implements pointer.PressReceiver.
func (l *RecordingLayer) ReceivePress(p *pointer.Pointer) { l.record("press", p) }

// ReceiveRelease implements pointer.ReleaseReceiver.
func (l *RecordingLayer) ReceiveRelease(p *pointer.Pointer) { l.record("release", p) }

// ReceiveRemove implements pointer.RemoveReceiver.
func (l *RecordingLayer) ReceiveRemove(p *pointer.Pointer) { l.record("remove", p) }

// ReceiveCancel implements pointer.CancelReceiver.
func (l *RecordingLayer) ReceiveCancel(p *pointer.Pointer) { l.record("cancel", p) }

// ResolutionChanged implements pointer.ResolutionReceiver.
func (l *RecordingLayer) ResolutionChanged() {
	l.mu.Lock()
	l.calls = append(l.calls, "resolution")
	l.mu.Unlock()
}

// Calls returns a copy of the recorded deliveries, in order.
func (l *RecordingLayer) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Reset discards recorded deliveries.
func (l *RecordingLayer) Reset() {
	l.mu.Lock()
	l.calls = l.calls[:0]
	l.mu.Unlock()
}

// RecordingSubscriber implements every batch observer plus the cycle
// observer and records each delivery as "category[id id ...]" (for
// example "added[1 2]"), with cycle boundaries as "cycle_started" and
// "cycle_finished". Safe for concurrent use.
//
// Set PanicOn to a category name to make that batch callback panic.
// Set OnDelivery to run a hook (typically a reentrant producer call)
// during each batch callback, before recording.
type RecordingSubscriber struct {
	PanicOn    string
	OnDelivery func(category string, batch []*pointer.Pointer)

	mu     sync.Mutex
	events []string
}

// NewRecordingSubscriber creates an empty recording subscriber.
func NewRecordingSubscriber() *RecordingSubscriber {
	return &RecordingSubscriber{}
}

func (s *RecordingSubscriber) record(category string, batch []*pointer.Pointer) {
	if s.OnDelivery != nil {
		s.OnDelivery(category, batch)
	}
	if s.PanicOn == category {
		panic("induced " + category + " fault")
	}

	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = strconv.FormatInt(int64(p.ID), 10)
	}

	s.mu.Lock()
	s.events = append(s.events, category+"["+strings.Join(ids, " ")+"]")
	s.mu.Unlock()
}

func (s *RecordingSubscriber) mark(event string) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

// OnAdded implements aggregator.AddedObserver.
func (s *RecordingSubscriber) OnAdded(ps []*pointer.Pointer) { s.record("added", ps) }

// OnUpdated implements aggregator.UpdatedObserver.
func (s *RecordingSubscriber) OnUpdated(ps []*pointer.Pointer) { s.record("updated", ps) }

// OnPressed implements aggregator.PressedObserver.
func (s *RecordingSubscriber) OnPressed(ps []*pointer.Pointer) { s.record("pressed", ps) }

// OnReleased implements aggregator.ReleasedObserver.
func (s *RecordingSubscriber) OnReleased(ps []*pointer.Pointer) { s.record("released", ps) }

// OnRemoved implements aggregator.RemovedObserver.
func (s *RecordingSubscriber) OnRemoved(ps []*pointer.Pointer) { s.record("removed", ps) }

// OnCancelled implements aggregator.CancelledObserver.
func (s *RecordingSubscriber) OnCancelled(ps []*pointer.Pointer) { s.record("cancelled", ps) }

// OnCycleStarted implements aggregator.CycleObserver.
func (s *RecordingSubscriber) OnCycleStarted() { s.mark("cycle_started") }

// OnCycleFinished implements aggregator.CycleObserver.
func (s *RecordingSubscriber) OnCycleFinished() { s.mark("cycle_finished") }

// Events returns a copy of the recorded events, in order.
func (s *RecordingSubscriber) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

// Batches returns only the batch events, dropping cycle boundary marks.
func (s *RecordingSubscriber) Batches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e != "cycle_started" && e != "cycle_finished" {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards recorded events.
func (s *RecordingSubscriber) Reset() {
	s.mu.Lock()
	s.events = s.events[:0]
	s.mu.Unlock()
}
