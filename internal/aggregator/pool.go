package aggregator

import (
	"sync"
	"sync/atomic"
)

// Pool is a fixed-growth object pool.
//
// Unlike sync.Pool, objects are never dropped by the garbage collector and
// the pool tracks exactly how many objects it has created. Warm(n)
// pre-populates the pool so that steady-state operation over a bounded
// working set performs no allocation; growth beyond the warm size is
// permitted but counted (and surfaced as a diagnostic by the owner) since
// it indicates an allocation hazard.
//
// Thread-safety: all methods are safe for concurrent use.
type Pool[T any] struct {
	mu   sync.Mutex
	free []T

	newFn   func() T
	resetFn func(T)

	warm      int
	allocated atomic.Int64
	grown     atomic.Int64

	// onGrow, if set, is invoked after an allocation beyond the warm size
	// with the running growth total. Called outside the pool lock.
	onGrow func(total int64)
}

// NewPool creates a pool that constructs objects with newFn and resets
// them with resetFn on release. resetFn may be nil.
func NewPool[T any](newFn func() T, resetFn func(T)) *Pool[T] {
	return &Pool[T]{
		newFn:   newFn,
		resetFn: resetFn,
	}
}

// Warm pre-populates the pool with n objects.
// Objects created by Warm count as allocated but never as growth.
func (p *Pool[T]) Warm(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < n; i++ {
		p.free = append(p.free, p.newFn())
	}
	p.warm += n
	p.allocated.Add(int64(n))
}

// Acquire returns a pooled object, creating one if the pool is empty.
func (p *Pool[T]) Acquire() T {
	p.mu.Lock()

	if n := len(p.free); n > 0 {
		v := p.free[n-1]
		var zero T
		p.free[n-1] = zero // release the pool's reference
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return v
	}

	// Pool exhausted: allocate. Growth beyond the warm size is an
	// allocation hazard, not an error.
	total := p.allocated.Add(1)
	var grownTotal int64
	if int(total) > p.warm {
		grownTotal = p.grown.Add(1)
	}
	p.mu.Unlock()

	v := p.newFn()
	if grownTotal > 0 && p.onGrow != nil {
		p.onGrow(grownTotal)
	}
	return v
}

// Release resets an object and returns it to the pool.
func (p *Pool[T]) Release(v T) {
	if p.resetFn != nil {
		p.resetFn(v)
	}

	p.mu.Lock()
	p.free = append(p.free, v)
	p.mu.Unlock()
}

// Allocated returns the total number of objects ever created by the pool,
// including those created by Warm.
func (p *Pool[T]) Allocated() int64 {
	return p.allocated.Load()
}

// Grown returns the number of allocations beyond the warm size.
// Zero after warm-up means steady-state operation is allocation-free.
func (p *Pool[T]) Grown() int64 {
	return p.grown.Load()
}

// Free returns the number of objects currently idle in the pool.
// Used for testing and introspection.
func (p *Pool[T]) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
