package aggregator

import "github.com/tmcln/pointerhub/internal/pointer"

// The change-set buffer accumulates pending transitions for the
// in-progress cycle. Six logical sets, all guarded by the one aggregator
// mutex: mutation entry points are callable from any goroutine,
// synchronously or from native callbacks, at arbitrary times.
//
// "Added" preserves insertion order (duplicates are impossible because
// each add allocates a fresh identity); the other five collapse
// duplicates. All containers are pooled and pre-sized so the id-set entry
// points never allocate on the hot path after warm-up.

// addBatch holds pending adds in insertion order, with an identity index
// so same-cycle mutations of a not-yet-dispatched pointer resolve.
type addBatch struct {
	list  []*pointer.Pointer
	index map[pointer.ID]*pointer.Pointer
}

func newAddBatch(capacity int) *addBatch {
	return &addBatch{
		list:  make([]*pointer.Pointer, 0, capacity),
		index: make(map[pointer.ID]*pointer.Pointer, capacity),
	}
}

func (b *addBatch) append(p *pointer.Pointer) {
	b.list = append(b.list, p)
	b.index[p.ID] = p
}

func (b *addBatch) lookup(id pointer.ID) (*pointer.Pointer, bool) {
	p, ok := b.index[id]
	return p, ok
}

func (b *addBatch) len() int { return len(b.list) }

// reset clears the batch for pool reuse. Slots are nilled out so the
// backing array does not retain pointer records.
func (b *addBatch) reset() {
	for i := range b.list {
		b.list[i] = nil
	}
	b.list = b.list[:0]
	clear(b.index)
}

// updateStage is the staged position/state for one pending update.
// A second update in the same cycle overwrites the stage: position and
// previous position change at most once per cycle, carrying the net
// change.
type updateStage struct {
	pos     pointer.Point
	buttons pointer.Buttons
}

// updateSet holds pending updates keyed by identity.
type updateSet struct {
	stages map[pointer.ID]updateStage
}

func newUpdateSet(capacity int) *updateSet {
	return &updateSet{stages: make(map[pointer.ID]updateStage, capacity)}
}

// add stages an update. Returns false if the identity already had a
// pending update this cycle (the new stage wins).
func (s *updateSet) add(id pointer.ID, stage updateStage) bool {
	_, exists := s.stages[id]
	s.stages[id] = stage
	return !exists
}

func (s *updateSet) get(id pointer.ID) (updateStage, bool) {
	stage, ok := s.stages[id]
	return stage, ok
}

func (s *updateSet) len() int { return len(s.stages) }

func (s *updateSet) reset() { clear(s.stages) }

// idSet holds one category's pending identities.
type idSet struct {
	ids map[pointer.ID]struct{}
}

func newIDSet(capacity int) *idSet {
	return &idSet{ids: make(map[pointer.ID]struct{}, capacity)}
}

// add records an identity. Returns false if it was already pending, which
// the caller surfaces as a duplicate-submission diagnostic.
func (s *idSet) add(id pointer.ID) bool {
	if _, dup := s.ids[id]; dup {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *idSet) has(id pointer.ID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *idSet) len() int { return len(s.ids) }

func (s *idSet) reset() { clear(s.ids) }

// changeSet is the current cycle's six pending sets. The aggregator swaps
// non-empty members for pooled replacements at the top of each tick.
type changeSet struct {
	added     *addBatch
	updated   *updateSet
	pressed   *idSet
	released  *idSet
	removed   *idSet
	cancelled *idSet
}

// setFor returns the id set backing one of the four press-class
// categories. Added and updated have dedicated container types.
func (c *changeSet) setFor(cat Category) *idSet {
	switch cat {
	case CategoryPressed:
		return c.pressed
	case CategoryReleased:
		return c.released
	case CategoryRemoved:
		return c.removed
	case CategoryCancelled:
		return c.cancelled
	default:
		panic("changeset: category has no id set: " + cat.String())
	}
}
