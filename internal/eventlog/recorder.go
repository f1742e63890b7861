package eventlog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// Recorder is an aggregator subscriber that persists every dispatched
// cycle to a Store.
//
// Events buffer in memory between cycle boundaries and flush in one
// transaction on OnCycleFinished. Cycles with no events are skipped.
//
// Recording never disturbs dispatch: a storage failure is logged, kept
// for LastError, and the recorder moves on to the next cycle.
type Recorder struct {
	store   *Store
	session string
	logger  *slog.Logger

	mu      sync.Mutex
	seq     int64
	buffer  []EventRecord
	lastErr error
}

// NewRecorder creates a recorder writing cycles for the given session.
// A nil logger falls back to slog.Default().
//
// Subscribe it before the first Tick so cycle sequence numbers align
// with the aggregator's.
func NewRecorder(store *Store, session string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		session: session,
		logger:  logger,
	}
}

// Session returns the session token the recorder writes under.
func (r *Recorder) Session() string { return r.session }

// LastError returns the most recent storage failure, or nil.
func (r *Recorder) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Recorder) capture(cat aggregator.Category, batch []*pointer.Pointer) {
	r.mu.Lock()
	for _, p := range batch {
		owner := ""
		if p.Press.Valid() {
			owner = p.Press.Layer.Name()
		}
		r.buffer = append(r.buffer, EventRecord{
			Category:  cat,
			PointerID: p.ID,
			Kind:      p.Kind,
			Pos:       p.Pos,
			PrevPos:   p.PrevPos,
			Buttons:   p.Buttons,
			Flags:     p.Flags,
			Owner:     owner,
		})
	}
	r.mu.Unlock()
}

// OnCycleStarted implements aggregator.CycleObserver.
func (r *Recorder) OnCycleStarted() {
	r.mu.Lock()
	r.seq++
	r.buffer = r.buffer[:0]
	r.mu.Unlock()
}

// OnCycleFinished implements aggregator.CycleObserver.
// Flushes the buffered cycle; an empty cycle writes nothing.
func (r *Recorder) OnCycleFinished() {
	r.mu.Lock()
	seq := r.seq
	events := make([]EventRecord, len(r.buffer))
	copy(events, r.buffer)
	r.buffer = r.buffer[:0]
	r.mu.Unlock()

	if len(events) == 0 {
		return
	}

	if err := r.store.WriteCycle(context.Background(), r.session, seq, events); err != nil {
		r.logger.Error("event log write failed",
			"session", r.session,
			"cycle", seq,
			"events", len(events),
			"error", err,
		)
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
	}
}

// OnAdded implements aggregator.AddedObserver.
func (r *Recorder) OnAdded(ps []*pointer.Pointer) {
	r.capture(aggregator.CategoryAdded, ps)
}

// OnUpdated implements aggregator.UpdatedObserver.
func (r *Recorder) OnUpdated(ps []*pointer.Pointer) {
	r.capture(aggregator.CategoryUpdated, ps)
}

// OnPressed implements aggregator.PressedObserver.
func (r *Recorder) OnPressed(ps []*pointer.Pointer) {
	r.capture(aggregator.CategoryPressed, ps)
}

// OnReleased implements aggregator.ReleasedObserver.
func (r *Recorder) OnReleased(ps []*pointer.Pointer) {
	r.capture(aggregator.CategoryReleased, ps)
}

// OnRemoved implements aggregator.RemovedObserver.
func (r *Recorder) OnRemoved(ps []*pointer.Pointer) {
	r.capture(aggregator.CategoryRemoved, ps)
}

// OnCancelled implements aggregator.CancelledObserver.
func (r *Recorder) OnCancelled(ps []*pointer.Pointer) {
	r.capture(aggregator.CategoryCancelled, ps)
}
