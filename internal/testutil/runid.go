package testutil

// DefaultRunID is the run ID used when a scenario does not set one.
const DefaultRunID = "test-run-00000000-0000-0000-0000-000000000001"

// FixedRunIDGenerator stamps the same run ID on every execution.
//
// Unlike engine.FixedGenerator, which hands out a list of IDs once each,
// this generator never runs out, so one scenario can execute the same
// program several times (for example under different schedules) and
// still produce byte-identical trace logs.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator that always returns id.
// An empty id falls back to DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
