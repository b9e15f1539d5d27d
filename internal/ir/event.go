package ir

// Op names a state-changing engine operation.
type Op string

// Catalog operations.
const (
	OpAddGeneration             Op = "add_generation"
	OpRemoveGeneration          Op = "remove_generation"
	OpEnableGeneration          Op = "enable_generation"
	OpDisableGeneration         Op = "disable_generation"
	OpSetGenerationName         Op = "set_generation_name"
	OpSetGenerationBaseURI      Op = "set_generation_base_uri"
	OpSetGenerationPrice        Op = "set_generation_price"
	OpSetGenerationPrerequisite Op = "set_generation_prerequisite"
	OpSetGenerationAvailability Op = "set_generation_availability"
	OpSetDefaultBaseURI         Op = "set_default_base_uri"
)

// Ledger and lifecycle operations.
const (
	OpUnlockGeneration   Op = "unlock_generation"
	OpActivateGeneration Op = "activate_generation"
	OpMint               Op = "mint"
	OpBurn               Op = "burn"
)

// Argument keys used in Event.Args.
const (
	ArgAsset        = "asset"
	ArgGeneration   = "generation"
	ArgName         = "name"
	ArgBaseURI      = "base_uri"
	ArgPrice        = "price"
	ArgPrerequisite = "prerequisite"
	ArgAutoUnlock   = "auto_unlock"
	ArgAvailable    = "available"
	ArgPayment      = "payment"
)

// Event is one applied operation in the journal. Only operations that
// changed state are recorded; rejections leave no trace in the log.
type Event struct {
	Seq    int64             `json:"seq"`   // Logical clock
	ID     string            `json:"id"`    // Content-addressed hash
	TxID   string            `json:"tx_id"` // Correlates the event with caller logs
	Op     Op                `json:"op"`
	Caller Identity          `json:"caller"`
	Args   map[string]string `json:"args"`
}

// AssetID returns the asset the event touched, if any.
func (e Event) AssetID() (AssetID, bool) {
	raw, ok := e.Args[ArgAsset]
	if !ok {
		return 0, false
	}
	id, err := ParseAssetID(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Mutation is the complete write set of one operation. The engine builds it
// after validation and hands it to the journal before publishing it in
// memory, so a journal failure leaves both sides untouched.
type Mutation struct {
	Event Event

	// Generations holds full replacement rows (inserts or updates).
	Generations []Generation

	// RemovedGenerations lists catalog rows to delete.
	RemovedGenerations []GenerationID

	// Assets holds full replacement rows (inserts or updates).
	Assets []Asset

	// BurnedAssets lists assets whose ledger entries are cleared.
	BurnedAssets []AssetID

	// DefaultBaseURI is set when the catalog-wide default changes.
	DefaultBaseURI *string
}
