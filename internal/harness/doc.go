// Package harness executes declarative pointer scenarios against a real
// aggregator and validates the dispatched trace.
//
// A scenario is a YAML file describing the layer stack, a hit-test table,
// a sequence of cycles (each a list of producer steps), and assertions on
// the resulting trace, diagnostics, and final counts. Scenarios run with
// a fixed session token and deterministic identity allocation, so the
// same scenario always produces byte-identical trace output; golden files
// pin that output for regression coverage.
package harness
