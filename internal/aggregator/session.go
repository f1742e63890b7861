package aggregator

import "github.com/google/uuid"

// SessionTokenGenerator generates the session token stamped on an
// aggregator's diagnostics and event-log records.
// Implemented by UUIDv7Generator (production) and FixedSessionGenerator
// (tests, golden traces).
type SessionTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time, which keeps event-log sessions listable in
// chronological order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedSessionGenerator returns a predetermined session token.
//
// This enables deterministic harness runs and golden trace comparison:
// the same scenario always produces the same session token in its trace.
type FixedSessionGenerator struct {
	Token string
}

// Generate returns the fixed token.
func (g FixedSessionGenerator) Generate() string {
	return g.Token
}
