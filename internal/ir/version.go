package ir

// Version constants for the journal schema and engine.
const (
	// JournalVersion is the event journal format version.
	JournalVersion = "1"

	// EngineVersion is the genlock engine version.
	EngineVersion = "0.1.0"
)
