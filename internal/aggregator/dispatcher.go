package aggregator

import (
	"fmt"
	"slices"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// Tick drains the pending change set and replays it to layers and
// subscribers in fixed category order: added, updated, pressed, released,
// removed, cancelled. Within a category, pointers dispatch in ascending
// identity order, so a cycle's output is fully determined by the set of
// staged transitions.
//
// The swap happens first and under the mutex; every callback runs after
// the unlock. Mutations submitted from inside a callback therefore land
// in the next cycle, never the one being dispatched.
//
// Tick must be called from a single scheduling goroutine. Overlapping
// calls are a programmer error and panic.
func (a *Aggregator) Tick() {
	if !a.ticking.CompareAndSwap(false, true) {
		panic("aggregator: Tick called concurrently")
	}
	defer a.ticking.Store(false)

	a.mu.Lock()
	cycle := a.cycleSeq.Add(1)

	// Swap out non-empty containers for pooled replacements. Empty
	// categories keep their container; there is nothing to drain.
	var drained changeSet
	if a.pending.added.len() > 0 {
		drained.added = a.pending.added
		a.pending.added = a.addPool.Acquire()

		// Make drained adds live inside the same critical section as the
		// swap. A producer mutating a just-drained identity must find it
		// known, with no window where it is neither pending nor live.
		for _, p := range drained.added.list {
			a.reg.insert(p)
		}
	}
	if a.pending.updated.len() > 0 {
		drained.updated = a.pending.updated
		a.pending.updated = a.updatePool.Acquire()
	}
	if a.pending.pressed.len() > 0 {
		drained.pressed = a.pending.pressed
		a.pending.pressed = a.setPool.Acquire()
	}
	if a.pending.released.len() > 0 {
		drained.released = a.pending.released
		a.pending.released = a.setPool.Acquire()
	}
	if a.pending.removed.len() > 0 {
		drained.removed = a.pending.removed
		a.pending.removed = a.setPool.Acquire()
	}
	if a.pending.cancelled.len() > 0 {
		drained.cancelled = a.pending.cancelled
		a.pending.cancelled = a.setPool.Acquire()
	}
	a.mu.Unlock()

	a.snapshotViews()

	for _, h := range a.subSnap {
		if h.cycle != nil {
			a.safeCall(h.id, cycle, h.cycle.OnCycleStarted)
		}
	}

	a.dispatchAdded(cycle, drained.added)
	a.dispatchUpdated(cycle, drained.updated)
	a.dispatchPressed(cycle, drained.pressed)
	a.dispatchReleased(cycle, drained.released)
	a.dispatchEnded(cycle, drained.removed, CategoryRemoved)
	a.dispatchEnded(cycle, drained.cancelled, CategoryCancelled)

	if drained.added != nil {
		a.addPool.Release(drained.added)
	}
	if drained.updated != nil {
		a.updatePool.Release(drained.updated)
	}
	if drained.pressed != nil {
		a.setPool.Release(drained.pressed)
	}
	if drained.released != nil {
		a.setPool.Release(drained.released)
	}
	if drained.removed != nil {
		a.setPool.Release(drained.removed)
	}
	if drained.cancelled != nil {
		a.setPool.Release(drained.cancelled)
	}

	for _, h := range a.subSnap {
		if h.cycle != nil {
			a.safeCall(h.id, cycle, h.cycle.OnCycleFinished)
		}
	}
}

// dispatchAdded broadcasts the cycle's new pointers. They were made live
// during the drain swap, so an add-observer that immediately stages a
// press or update for a just-announced pointer finds it known.
func (a *Aggregator) dispatchAdded(cycle int64, batch *addBatch) {
	if batch == nil {
		return
	}

	a.batch = a.batch[:0]
	for _, p := range batch.list {
		a.batch = append(a.batch, p)
		for _, l := range a.layerSnap {
			if r, ok := l.(pointer.AddReceiver); ok {
				a.receive(l.Name(), cycle, r.ReceiveAdd, p)
			}
		}
	}
	a.notifyBatch(cycle, CategoryAdded)
}

// dispatchUpdated applies staged position/state changes and broadcasts
// them. Exactly one update per pointer per cycle reaches consumers:
// producer-side coalescing guarantees it.
func (a *Aggregator) dispatchUpdated(cycle int64, set *updateSet) {
	if set == nil {
		return
	}

	a.batch = a.batch[:0]
	for _, id := range a.sortedStageIDs(set) {
		p, ok := a.reg.get(id)
		if !ok {
			a.dropped(cycle, id, CategoryUpdated)
			continue
		}
		stage, _ := set.get(id)
		p.PrevPos = p.Pos
		p.Pos = stage.pos
		p.Buttons = stage.buttons

		a.batch = append(a.batch, p)
		if p.Pressed() {
			// Owned pointers deliver exclusively to the owning layer.
			if r, ok := p.Press.Layer.(pointer.UpdateReceiver); ok {
				a.receive(p.Press.Layer.Name(), cycle, r.ReceiveUpdate, p)
			}
			continue
		}
		for _, l := range a.layerSnap {
			if r, ok := l.(pointer.UpdateReceiver); ok {
				a.receive(l.Name(), cycle, r.ReceiveUpdate, p)
			}
		}
	}
	a.notifyBatch(cycle, CategoryUpdated)
}

// dispatchPressed resolves press ownership via the hit tester. The
// claiming layer receives the press and is recorded as the pointer's
// owner. An unclaimed press leaves the pointer unpressed and is reported
// at verbose level; the pointer still appears in the subscriber batch so
// observers see the attempt.
func (a *Aggregator) dispatchPressed(cycle int64, set *idSet) {
	if set == nil {
		return
	}

	a.batch = a.batch[:0]
	for _, id := range a.sortedSetIDs(set) {
		p, ok := a.reg.get(id)
		if !ok {
			a.dropped(cycle, id, CategoryPressed)
			continue
		}
		if p.Pressed() {
			a.diag.Report(Diagnostic{
				Code:     CodeDuplicateSubmission,
				Message:  "press for already-pressed pointer collapsed",
				Pointer:  id,
				Category: CategoryPressed,
				Cycle:    cycle,
				Session:  a.session,
			})
			continue
		}

		var hit Hit
		claimed := false
		if a.hitTester != nil {
			a.safeCall("hit-tester", cycle, func() {
				hit, claimed = a.hitTester.HitTest(p)
			})
		}
		if claimed && hit.Layer != nil {
			p.Press = pointer.Ownership{Layer: hit.Layer, Context: hit.Context}
			a.mu.Lock()
			a.reg.markPressed(id)
			a.mu.Unlock()

			if r, ok := hit.Layer.(pointer.PressReceiver); ok {
				a.receive(hit.Layer.Name(), cycle, r.ReceivePress, p)
			}
		} else {
			a.diag.Report(Diagnostic{
				Code:     CodeUnclaimedPress,
				Message:  "no layer claimed press",
				Pointer:  id,
				Category: CategoryPressed,
				Cycle:    cycle,
				Session:  a.session,
			})
		}

		a.batch = append(a.batch, p)
	}
	a.notifyBatch(cycle, CategoryPressed)
}

// dispatchReleased hands releases back to the owning layer. The ownership
// record stays intact through the callbacks and the subscriber batch, so
// consumers can read which layer held the press; it is cleared after.
func (a *Aggregator) dispatchReleased(cycle int64, set *idSet) {
	if set == nil {
		return
	}

	a.batch = a.batch[:0]
	for _, id := range a.sortedSetIDs(set) {
		p, ok := a.reg.get(id)
		if !ok {
			a.dropped(cycle, id, CategoryReleased)
			continue
		}
		if !p.Pressed() {
			a.diag.Report(Diagnostic{
				Code:     CodeDuplicateSubmission,
				Message:  "release for unpressed pointer collapsed",
				Pointer:  id,
				Category: CategoryReleased,
				Cycle:    cycle,
				Session:  a.session,
			})
			continue
		}

		if r, ok := p.Press.Layer.(pointer.ReleaseReceiver); ok {
			a.receive(p.Press.Layer.Name(), cycle, r.ReceiveRelease, p)
		}
		a.batch = append(a.batch, p)
	}
	a.notifyBatch(cycle, CategoryReleased)

	// Clear ownership only after every consumer has seen the release.
	a.mu.Lock()
	for _, p := range a.batch {
		p.Press = pointer.Ownership{}
		a.reg.clearPressed(p.ID)
	}
	a.mu.Unlock()
}

// dispatchEnded retires pointers for the removed and cancelled categories.
// A pointer already retired earlier in the same cycle (removed then
// cancelled, or ended twice) is skipped and reported. Records return to
// the pool only after the subscriber batch callback.
func (a *Aggregator) dispatchEnded(cycle int64, set *idSet, cat Category) {
	if set == nil {
		return
	}

	a.batch = a.batch[:0]
	a.retired = a.retired[:0]
	for _, id := range a.sortedSetIDs(set) {
		a.mu.Lock()
		p, ok := a.reg.detach(id)
		a.mu.Unlock()
		if !ok {
			a.dropped(cycle, id, cat)
			continue
		}

		for _, l := range a.layerSnap {
			switch cat {
			case CategoryRemoved:
				if r, ok := l.(pointer.RemoveReceiver); ok {
					a.receive(l.Name(), cycle, r.ReceiveRemove, p)
				}
			case CategoryCancelled:
				if r, ok := l.(pointer.CancelReceiver); ok {
					a.receive(l.Name(), cycle, r.ReceiveCancel, p)
				}
			}
		}
		a.batch = append(a.batch, p)
		a.retired = append(a.retired, p)
	}
	a.notifyBatch(cycle, cat)

	a.mu.Lock()
	for i, p := range a.retired {
		a.reg.release(p)
		a.retired[i] = nil
	}
	a.mu.Unlock()
	a.retired = a.retired[:0]
}

// notifyBatch delivers a.batch to every subscriber capable of the
// category. Empty batches are not delivered.
func (a *Aggregator) notifyBatch(cycle int64, cat Category) {
	if len(a.batch) == 0 {
		return
	}
	for _, h := range a.subSnap {
		var fn func([]*pointer.Pointer)
		switch cat {
		case CategoryAdded:
			if h.added != nil {
				fn = h.added.OnAdded
			}
		case CategoryUpdated:
			if h.updated != nil {
				fn = h.updated.OnUpdated
			}
		case CategoryPressed:
			if h.pressed != nil {
				fn = h.pressed.OnPressed
			}
		case CategoryReleased:
			if h.released != nil {
				fn = h.released.OnReleased
			}
		case CategoryRemoved:
			if h.removed != nil {
				fn = h.removed.OnRemoved
			}
		case CategoryCancelled:
			if h.cancelled != nil {
				fn = h.cancelled.OnCancelled
			}
		}
		if fn != nil {
			batch := a.batch
			a.safeCall(h.id, cycle, func() { fn(batch) })
		}
	}
}

// sortedSetIDs copies an id set's keys into the reusable scratch buffer
// and sorts them ascending.
func (a *Aggregator) sortedSetIDs(set *idSet) []pointer.ID {
	a.idScratch = a.idScratch[:0]
	for id := range set.ids {
		a.idScratch = append(a.idScratch, id)
	}
	slices.Sort(a.idScratch)
	return a.idScratch
}

// sortedStageIDs is sortedSetIDs for the update set's map.
func (a *Aggregator) sortedStageIDs(set *updateSet) []pointer.ID {
	a.idScratch = a.idScratch[:0]
	for id := range set.stages {
		a.idScratch = append(a.idScratch, id)
	}
	slices.Sort(a.idScratch)
	return a.idScratch
}

// dropped reports a pending identity that vanished before its category
// replayed.
func (a *Aggregator) dropped(cycle int64, id pointer.ID, cat Category) {
	a.diag.Report(Diagnostic{
		Code:     CodeDroppedMidCycle,
		Message:  cat.String() + " entry skipped, pointer retired earlier",
		Pointer:  id,
		Category: cat,
		Cycle:    cycle,
		Session:  a.session,
	})
}

// receive invokes one layer callback with panic isolation.
func (a *Aggregator) receive(consumer string, cycle int64, fn func(*pointer.Pointer), p *pointer.Pointer) {
	a.safeCall(consumer, cycle, func() { fn(p) })
}

// safeCall runs a consumer callback, converting a panic into a
// consumer-fault diagnostic. One faulty consumer never takes down the
// dispatch cycle or starves its peers.
func (a *Aggregator) safeCall(consumer string, cycle int64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.diag.Report(Diagnostic{
				Code:     CodeConsumerFault,
				Message:  fmt.Sprintf("consumer panicked: %v", r),
				Cycle:    cycle,
				Session:  a.session,
				Consumer: consumer,
			})
		}
	}()
	fn()
}
