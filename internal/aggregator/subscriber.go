package aggregator

import (
	"errors"

	"github.com/tmcln/pointerhub/internal/pointer"
)

// Subscriber registry errors.
var (
	ErrSubscriberExists   = errors.New("subscriber id already registered")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNilSubscriber      = errors.New("subscriber is nil")
	ErrNoCapabilities     = errors.New("subscriber implements no notification interface")
)

// Batch observers. A subscriber implements any subset; capabilities are
// detected once at subscribe time. Each callback carries the pointers
// affected in that cycle's category, in dispatch order. The slice and the
// records it holds are owned by the aggregator and must not be retained
// past the callback.
type (
	// AddedObserver receives the cycle's added batch.
	AddedObserver interface {
		OnAdded([]*pointer.Pointer)
	}

	// UpdatedObserver receives the cycle's updated batch.
	UpdatedObserver interface {
		OnUpdated([]*pointer.Pointer)
	}

	// PressedObserver receives the cycle's pressed batch, including
	// presses no layer claimed.
	PressedObserver interface {
		OnPressed([]*pointer.Pointer)
	}

	// ReleasedObserver receives the cycle's released batch. Ownership
	// records are still valid during the callback and cleared after.
	ReleasedObserver interface {
		OnReleased([]*pointer.Pointer)
	}

	// RemovedObserver receives the cycle's removed batch. Records return
	// to the pool after the callback; do not retain them.
	RemovedObserver interface {
		OnRemoved([]*pointer.Pointer)
	}

	// CancelledObserver receives the cycle's cancelled batch.
	CancelledObserver interface {
		OnCancelled([]*pointer.Pointer)
	}

	// CycleObserver is notified at every cycle boundary, whether or not
	// any category had pending entries.
	CycleObserver interface {
		OnCycleStarted()
		OnCycleFinished()
	}
)

// subscriberHolder caches a subscriber's capabilities so dispatch does not
// type-assert per cycle.
type subscriberHolder struct {
	id string

	added     AddedObserver
	updated   UpdatedObserver
	pressed   PressedObserver
	released  ReleasedObserver
	removed   RemovedObserver
	cancelled CancelledObserver
	cycle     CycleObserver
}

func newSubscriberHolder(id string, sub any) (*subscriberHolder, error) {
	if sub == nil {
		return nil, ErrNilSubscriber
	}

	h := &subscriberHolder{id: id}
	capable := false
	if o, ok := sub.(AddedObserver); ok {
		h.added = o
		capable = true
	}
	if o, ok := sub.(UpdatedObserver); ok {
		h.updated = o
		capable = true
	}
	if o, ok := sub.(PressedObserver); ok {
		h.pressed = o
		capable = true
	}
	if o, ok := sub.(ReleasedObserver); ok {
		h.released = o
		capable = true
	}
	if o, ok := sub.(RemovedObserver); ok {
		h.removed = o
		capable = true
	}
	if o, ok := sub.(CancelledObserver); ok {
		h.cancelled = o
		capable = true
	}
	if o, ok := sub.(CycleObserver); ok {
		h.cycle = o
		capable = true
	}
	if !capable {
		return nil, ErrNoCapabilities
	}
	return h, nil
}

// Subscribe registers a batch subscriber under a unique id. Notifications
// are delivered in subscription order. The subscriber must implement at
// least one observer interface.
//
// Thread-safe; may be called at any time, including from a dispatch
// callback (taking effect from the notification after the current one).
func (a *Aggregator) Subscribe(id string, sub any) error {
	h, err := newSubscriberHolder(id, sub)
	if err != nil {
		return err
	}

	a.viewMu.Lock()
	defer a.viewMu.Unlock()

	for _, existing := range a.subs {
		if existing.id == id {
			return ErrSubscriberExists
		}
	}
	a.subs = append(a.subs, h)
	return nil
}

// Unsubscribe removes a subscriber. Subscription order of the remaining
// subscribers is preserved.
func (a *Aggregator) Unsubscribe(id string) error {
	a.viewMu.Lock()
	defer a.viewMu.Unlock()

	for i, h := range a.subs {
		if h.id == id {
			a.subs = append(a.subs[:i], a.subs[i+1:]...)
			return nil
		}
	}
	return ErrSubscriberNotFound
}

// SetLayers replaces the ordered layer view. The aggregator does not own
// layers; it only iterates this externally-managed sequence during
// dispatch. The slice is copied.
func (a *Aggregator) SetLayers(layers ...pointer.Layer) {
	cp := make([]pointer.Layer, len(layers))
	copy(cp, layers)

	a.viewMu.Lock()
	a.layers = cp
	a.viewMu.Unlock()
}

// Layers returns a copy of the current ordered layer view.
// Used for testing and introspection.
func (a *Aggregator) Layers() []pointer.Layer {
	a.viewMu.RLock()
	defer a.viewMu.RUnlock()

	cp := make([]pointer.Layer, len(a.layers))
	copy(cp, a.layers)
	return cp
}

// snapshotViews copies the layer view and subscriber list into reusable
// dispatch buffers. Dispatch iterates the snapshots so callbacks can
// subscribe/unsubscribe or swap layers without deadlocking; such changes
// take effect from the next delivery.
func (a *Aggregator) snapshotViews() {
	a.viewMu.RLock()
	a.layerSnap = append(a.layerSnap[:0], a.layers...)
	a.subSnap = append(a.subSnap[:0], a.subs...)
	a.viewMu.RUnlock()
}
