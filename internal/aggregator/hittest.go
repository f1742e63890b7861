package aggregator

import "github.com/tmcln/pointerhub/internal/pointer"

// Hit is the result of a hit-test query: the layer claiming press
// ownership plus any layer-specific context to record on the ownership
// record (projection data, local coordinates, ...).
type Hit struct {
	Layer   pointer.Layer
	Context any
}

// HitTester answers the single hit-test query the dispatcher performs per
// press: which layer, if any, claims this pointer. Injected at
// construction, keeping the aggregator decoupled from spatial concerns.
//
// HitTest runs on the dispatch goroutine. It must not call back into the
// aggregator's producer API synchronously with the expectation of
// same-cycle effect: staged transitions land in the next cycle.
type HitTester interface {
	HitTest(*pointer.Pointer) (Hit, bool)
}

// HitTesterFunc adapts a plain function to the HitTester interface.
type HitTesterFunc func(*pointer.Pointer) (Hit, bool)

// HitTest implements HitTester.
func (f HitTesterFunc) HitTest(p *pointer.Pointer) (Hit, bool) {
	return f(p)
}
