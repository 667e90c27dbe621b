package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the IR wire schema version.
	IRVersion = "1"

	// EngineVersion is the reference executor version.
	EngineVersion = "0.1.0"
)
