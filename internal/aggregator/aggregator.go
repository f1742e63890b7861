package aggregator

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// DefaultWarmPointers is the default number of pointer records the record
// pool is pre-populated with. A touch digitizer rarely tracks more than
// ten simultaneous contacts; the default leaves ample headroom.
const DefaultWarmPointers = 64

// changeSetSpares is how many spare containers each pending-set pool is
// warmed with: one active plus one drain-in-progress per category.
const changeSetSpares = 2

// Aggregator is the pointer lifecycle aggregator and frame dispatcher.
//
// Construct one explicitly with New and hand it to producers and
// consumers at wiring time; there is no package-level instance.
//
// Thread-safety model:
//   - Add/Update/Press/Release/Remove/Cancel: safe from any goroutine,
//     including reentrantly from dispatch callbacks
//   - Tick(): must be called by exactly one scheduler, never concurrently
//     with itself
//   - Subscribe/Unsubscribe/SetLayers/UpdateResolution: safe from any
//     goroutine
type Aggregator struct {
	// mu guards the pending change set and registry writes. Critical
	// sections are bounded to map/slice operations and the tick-time
	// container swap; dispatch callbacks never run under it.
	mu      sync.Mutex
	reg     *registry
	pending changeSet

	// cycleSeq is the sequence number of the most recently started cycle.
	// Atomic so pool growth hooks and producer-side diagnostics can read
	// it while mu is held. Incremented only by Tick.
	cycleSeq atomic.Int64

	recordPool *Pool[*pointer.Pointer]
	addPool    *Pool[*addBatch]
	updatePool *Pool[*updateSet]
	setPool    *Pool[*idSet]

	hitTester HitTester
	diag      Sink
	session   string

	// viewMu guards the layer view and subscriber list (subscriber.go).
	viewMu sync.RWMutex
	layers []pointer.Layer
	subs   []*subscriberHolder

	ticking atomic.Bool

	// Dispatch scratch buffers, touched only by the dispatch goroutine
	// and reused every cycle.
	idScratch []pointer.ID
	batch     []*pointer.Pointer
	retired   []*pointer.Pointer
	layerSnap []pointer.Layer
	subSnap   []*subscriberHolder

	warmPointers int
	sessionGen   SessionTokenGenerator
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithHitTester injects the hit-test query used to resolve press
// ownership. Without one, no layer ever claims a press.
func WithHitTester(ht HitTester) Option {
	return func(a *Aggregator) {
		a.hitTester = ht
	}
}

// WithDiagnostics routes diagnostics to the given sink.
// Default: a SlogSink over slog.Default().
func WithDiagnostics(sink Sink) Option {
	return func(a *Aggregator) {
		a.diag = sink
	}
}

// WithWarmPointers sets how many pointer records to pre-allocate.
// Default: DefaultWarmPointers.
func WithWarmPointers(n int) Option {
	return func(a *Aggregator) {
		a.warmPointers = n
	}
}

// WithSessionGenerator overrides the session token generator.
// Default: UUIDv7Generator. Tests and the harness use
// FixedSessionGenerator for deterministic traces.
func WithSessionGenerator(gen SessionTokenGenerator) Option {
	return func(a *Aggregator) {
		a.sessionGen = gen
	}
}

// New creates an Aggregator and warms its pools.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		warmPointers: DefaultWarmPointers,
		sessionGen:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.diag == nil {
		a.diag = NewSlogSink(nil)
	}
	a.session = a.sessionGen.Generate()

	capacity := a.warmPointers

	a.recordPool = NewPool(
		func() *pointer.Pointer { return &pointer.Pointer{} },
		func(p *pointer.Pointer) { p.Reset() },
	)
	a.recordPool.onGrow = a.poolGrowth("pointer records")
	a.recordPool.Warm(capacity)

	a.addPool = NewPool(
		func() *addBatch { return newAddBatch(capacity) },
		func(b *addBatch) { b.reset() },
	)
	a.addPool.onGrow = a.poolGrowth("added batches")
	a.addPool.Warm(changeSetSpares)

	a.updatePool = NewPool(
		func() *updateSet { return newUpdateSet(capacity) },
		func(s *updateSet) { s.reset() },
	)
	a.updatePool.onGrow = a.poolGrowth("update sets")
	a.updatePool.Warm(changeSetSpares)

	a.setPool = NewPool(
		func() *idSet { return newIDSet(capacity) },
		func(s *idSet) { s.reset() },
	)
	a.setPool.onGrow = a.poolGrowth("id sets")
	// Four id-set categories, one active + one spare each.
	a.setPool.Warm(4 * changeSetSpares)

	a.reg = newRegistry(a.recordPool, capacity)
	a.pending = changeSet{
		added:     a.addPool.Acquire(),
		updated:   a.updatePool.Acquire(),
		pressed:   a.setPool.Acquire(),
		released:  a.setPool.Acquire(),
		removed:   a.setPool.Acquire(),
		cancelled: a.setPool.Acquire(),
	}

	slog.Debug("aggregator created",
		"session", a.session,
		"warm_pointers", capacity,
	)
	return a
}

// poolGrowth builds the growth hook for one pool. The hook runs while
// the caller of Acquire may hold mu, so it must not lock; a pooled
// object always serves the cycle about to dispatch, hence Load()+1.
func (a *Aggregator) poolGrowth(what string) func(int64) {
	return func(total int64) {
		a.diag.Report(Diagnostic{
			Code:    CodePoolGrowth,
			Message: what + " pool grew beyond warm size",
			Cycle:   a.cycleSeq.Load() + 1,
			Session: a.session,
		})
	}
}

// Session returns the aggregator's session token.
func (a *Aggregator) Session() string { return a.session }

// CycleSeq returns the sequence number of the most recent cycle.
func (a *Aggregator) CycleSeq() int64 {
	return a.cycleSeq.Load()
}

// LiveCount returns the number of currently live pointers.
func (a *Aggregator) LiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reg.liveCount()
}

// PressedCount returns the number of currently pressed pointers.
func (a *Aggregator) PressedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reg.pressedCount()
}

// LastID returns the most recently issued pointer identity.
// Used for testing and introspection.
func (a *Aggregator) LastID() pointer.ID {
	return a.reg.ids.current()
}

// PoolStats reports pool allocation counters.
type PoolStats struct {
	RecordsAllocated int64
	RecordsGrown     int64
	ContainersGrown  int64
}

// PoolStats returns the current pool counters. RecordsGrown and
// ContainersGrown staying zero after warm-up is the observable
// no-allocation steady-state property.
func (a *Aggregator) PoolStats() PoolStats {
	return PoolStats{
		RecordsAllocated: a.recordPool.Allocated(),
		RecordsGrown:     a.recordPool.Grown(),
		ContainersGrown:  a.addPool.Grown() + a.updatePool.Grown() + a.setPool.Grown(),
	}
}

// Add registers a new pointer from the template and returns its identity.
// The pointer becomes live (and is broadcast to layers) on the next Tick.
// Always succeeds; callable from any goroutine.
func (a *Aggregator) Add(t pointer.Template) pointer.ID {
	a.mu.Lock()
	p := a.reg.allocate(t)
	a.pending.added.append(p)
	a.mu.Unlock()
	return p.ID
}

// Update stages a position/state change for a pointer. A second update in
// the same cycle overwrites the staged values silently: updates coalesce,
// and the net change is what dispatch applies.
func (a *Aggregator) Update(id pointer.ID, pos pointer.Point, buttons pointer.Buttons) {
	a.mu.Lock()
	if !a.knownLocked(id) {
		d := a.staleLocked(id, CategoryUpdated)
		a.mu.Unlock()
		a.diag.Report(d)
		return
	}
	a.pending.updated.add(id, updateStage{pos: pos, buttons: buttons})
	a.mu.Unlock()
}

// Press requests press ownership resolution for a pointer on the next Tick.
func (a *Aggregator) Press(id pointer.ID) { a.submit(id, CategoryPressed) }

// Release requests the release of a pointer's press ownership on the next
// Tick.
func (a *Aggregator) Release(id pointer.ID) { a.submit(id, CategoryReleased) }

// Remove requests the graceful end of a contact on the next Tick.
func (a *Aggregator) Remove(id pointer.ID) { a.submit(id, CategoryRemoved) }

// Cancel requests the abnormal end of a contact (source lost, focus lost)
// on the next Tick.
func (a *Aggregator) Cancel(id pointer.ID) { a.submit(id, CategoryCancelled) }

// submit stages an id-set transition, handling the stale-reference and
// duplicate-submission anomalies. Diagnostics are reported after the lock
// is released to keep the critical section bounded.
func (a *Aggregator) submit(id pointer.ID, cat Category) {
	var d Diagnostic
	report := false

	a.mu.Lock()
	if !a.knownLocked(id) {
		d = a.staleLocked(id, cat)
		report = true
	} else if !a.pending.setFor(cat).add(id) {
		d = Diagnostic{
			Code:     CodeDuplicateSubmission,
			Message:  "duplicate " + cat.String() + " request collapsed",
			Pointer:  id,
			Category: cat,
			Cycle:    a.cycleSeq.Load() + 1,
			Session:  a.session,
		}
		report = true
	}
	a.mu.Unlock()

	if report {
		a.diag.Report(d)
	}
}

// knownLocked reports whether an identity is live or pending-added this
// cycle. A pointer can be updated/pressed/removed in the same cycle it was
// added, before the dispatcher has run. Caller holds mu.
func (a *Aggregator) knownLocked(id pointer.ID) bool {
	if _, ok := a.reg.get(id); ok {
		return true
	}
	_, ok := a.pending.added.lookup(id)
	return ok
}

// staleLocked builds the stale-reference diagnostic. Caller holds mu.
func (a *Aggregator) staleLocked(id pointer.ID, cat Category) Diagnostic {
	return Diagnostic{
		Code:     CodeStaleReference,
		Message:  cat.String() + " request for unknown pointer dropped",
		Pointer:  id,
		Category: cat,
		Cycle:    a.cycleSeq.Load() + 1,
		Session:  a.session,
	}
}

// UpdateResolution notifies layers that the shared coordinate space
// changed (display resolution or window geometry). Delegated directly to
// ResolutionReceiver layers; not part of the cycle ordering protocol.
func (a *Aggregator) UpdateResolution() {
	a.viewMu.RLock()
	layers := append([]pointer.Layer(nil), a.layers...)
	a.viewMu.RUnlock()

	for _, l := range layers {
		if r, ok := l.(pointer.ResolutionReceiver); ok {
			a.safeCall(l.Name(), 0, func() { r.ResolutionChanged() })
		}
	}
}
