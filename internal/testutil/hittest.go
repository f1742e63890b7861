package testutil

import (
	"sync"

	"github.com/tmcln/pointerhub/internal/aggregator"
	"github.com/tmcln/pointerhub/internal/pointer"
)

// ScriptedHitTester answers hit tests from a fixed identity-to-layer
// script. Unscripted identities press unclaimed. Safe for concurrent use.
type ScriptedHitTester struct {
	mu     sync.Mutex
	claims map[pointer.ID]aggregator.Hit
}

// NewScriptedHitTester creates an empty scripted hit tester.
func NewScriptedHitTester() *ScriptedHitTester {
	return &ScriptedHitTester{claims: make(map[pointer.ID]aggregator.Hit)}
}

// Claim scripts presses of id to be claimed by layer with the given
// per-claim context.
func (h *ScriptedHitTester) Claim(id pointer.ID, layer pointer.Layer, context any) {
	h.mu.Lock()
	h.claims[id] = aggregator.Hit{Layer: layer, Context: context}
	h.mu.Unlock()
}

// HitTest implements aggregator.HitTester.
func (h *ScriptedHitTester) HitTest(p *pointer.Pointer) (aggregator.Hit, bool) {
	h.mu.Lock()
	hit, ok := h.claims[p.ID]
	h.mu.Unlock()
	return hit, ok
}
