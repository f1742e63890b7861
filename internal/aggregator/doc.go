// Package aggregator implements the pointer lifecycle aggregator and
// frame dispatcher.
//
// The aggregator accepts concurrent, unordered mutation requests for
// pointers (add, update, press, release, remove, cancel) from any
// goroutine, including platform callback threads, buffers them in a
// per-cycle change set, and replays the accumulated changes once per frame
// tick in a fixed causal order to an ordered set of layers and to batch
// subscribers.
//
// ARCHITECTURE:
//
// Single-Writer Dispatch:
// Tick() is invoked exactly once per cycle by an external scheduler and is
// the only place pointer state mutates. Producers never touch live
// pointers directly; they stage transitions in the change-set buffer.
// This ensures:
//   - A deterministic, per-cycle stream of lifecycle transitions
//   - Reproducible dispatch traces (golden-file comparable)
//   - Simple reasoning about causality
//
// Dispatch Flow:
//  1. Producers stage transitions under one mutex (bounded critical section)
//  2. Tick() swaps every non-empty pending set for a pooled empty one
//     under the same mutex, then releases it
//  3. Categories replay in fixed order:
//     added -> updated -> pressed -> released -> removed -> cancelled
//  4. Within a category, pointers replay in ascending identity order
//  5. Drained sets are cleared and returned to the pool
//
// Producers submitting during Tick() (including reentrantly from dispatch
// callbacks) land in the next cycle's buffer: the swap happens before any
// callback runs, so entry points never contend with in-progress dispatch.
//
// CRITICAL PATTERNS:
//
// Identity: pointer identities come from a monotonic atomic counter and
// are never reused, so stale references fail lookups instead of aliasing.
//
// Failure model: nothing inside the aggregator aborts a cycle. Stale
// references, duplicate submissions, unclaimed presses, consumer panics,
// and pool growth all degrade to "skip and report" through the diagnostics
// sink. The single hard failure is a duplicate live identity on registry
// insert, which indicates an allocation bug, not producer misuse.
//
// Memory: pointer records and pending sets are pooled. After Warm-up,
// steady-state operation over a bounded working set causes no pool growth
// (observable via PoolStats).
package aggregator
