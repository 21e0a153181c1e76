package testutil

// FixedSessionGenerator generates the same session ID every time.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with the same generator persists byte-identical rows.
//
// Unlike forecast.FixedGenerator which returns IDs in sequence, this generator
// always returns the same ID.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a new fixed session ID generator.
//
// The ID is typically set in the scenario YAML:
//
//	session_id: "test-session-0001"
//
// If id is empty, Generate() returns "test-session-default".
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session ID.
//
// Implements forecast.SessionIDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
