package aggregator

import (
	"fmt"
	"sync/atomic"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// identSource allocates pointer identities.
//
// Allocation is monotonic for the life of the process: identities are
// never reused even after retirement, so a stale reference held by a
// producer fails its registry lookup instead of silently aliasing a newer
// pointer.
//
// Thread-safety: safe for concurrent use (atomic operations).
type identSource struct {
	last atomic.Int64
}

// next returns a fresh, never-before-issued identity.
func (s *identSource) next() pointer.ID {
	return pointer.ID(s.last.Add(1))
}

// current returns the most recently issued identity without allocating.
// Used for testing and introspection.
func (s *identSource) current() pointer.ID {
	return pointer.ID(s.last.Load())
}

// registry is the live-pointer table: identity -> record, plus the set of
// currently pressed identities.
//
// Locking discipline: all registry WRITES happen under the aggregator
// mutex. READS during dispatch are lock-free because producers never
// mutate the live table (they only stage transitions in the change set);
// producer-side reads take the aggregator mutex.
type registry struct {
	ids     identSource
	records *Pool[*pointer.Pointer]
	live    map[pointer.ID]*pointer.Pointer
	pressed map[pointer.ID]struct{}
}

func newRegistry(records *Pool[*pointer.Pointer], capacity int) *registry {
	return &registry{
		records: records,
		live:    make(map[pointer.ID]*pointer.Pointer, capacity),
		pressed: make(map[pointer.ID]struct{}, capacity),
	}
}

// allocate acquires a pooled record and stamps it with a fresh identity
// and the template's initial state. The record is NOT yet live; it is
// inserted during the add category of the next dispatch.
func (r *registry) allocate(t pointer.Template) *pointer.Pointer {
	p := r.records.Acquire()
	p.Init(r.ids.next(), t)
	return p
}

// insert makes a pointer live.
//
// A duplicate live identity means identity allocation is broken, which is
// a programmer error, not producer misuse: it propagates as a panic per
// the failure model.
func (r *registry) insert(p *pointer.Pointer) {
	if _, dup := r.live[p.ID]; dup {
		panic(fmt.Sprintf("registry: duplicate live pointer identity %d", p.ID))
	}
	r.live[p.ID] = p
}

// get returns the live pointer for an identity.
func (r *registry) get(id pointer.ID) (*pointer.Pointer, bool) {
	p, ok := r.live[id]
	return p, ok
}

// markPressed records an identity in the pressed set.
func (r *registry) markPressed(id pointer.ID) {
	r.pressed[id] = struct{}{}
}

// clearPressed removes an identity from the pressed set.
func (r *registry) clearPressed(id pointer.ID) {
	delete(r.pressed, id)
}

// isPressed reports whether an identity is in the pressed set.
// Used for testing and introspection.
func (r *registry) isPressed(id pointer.ID) bool {
	_, ok := r.pressed[id]
	return ok
}

// detach removes an identity from the live table and the pressed set and
// returns its record WITHOUT pooling it: the dispatcher still needs the
// record for the remove/cancel broadcast and batch notification. The
// caller releases the record afterwards.
func (r *registry) detach(id pointer.ID) (*pointer.Pointer, bool) {
	p, ok := r.live[id]
	if !ok {
		return nil, false
	}
	delete(r.live, id)
	delete(r.pressed, id)
	return p, true
}

// release returns a detached record to the pool for reuse under a new
// identity. The pool's reset hook clears the record.
func (r *registry) release(p *pointer.Pointer) {
	r.records.Release(p)
}

func (r *registry) liveCount() int    { return len(r.live) }
func (r *registry) pressedCount() int { return len(r.pressed) }
