package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
)

// OpTransfer moves an asset to a new owner in the owner registry. It is a
// substrate event, not an engine operation, so it never reaches the journal.
const OpTransfer = "transfer"

// Scenario defines one engine scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Administrators may curate the catalog.
	Administrators []ir.Identity `yaml:"administrators,omitempty"`

	// Excess is the overpayment policy. Defaults to retain.
	Excess string `yaml:"excess,omitempty"`

	// Catalog is an optional CUE catalog applied before the steps, as the
	// first administrator. Relative paths resolve against the scenario file.
	Catalog string `yaml:"catalog,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation. Only the fields the op uses are read.
type Step struct {
	Op           string    `yaml:"op"`
	As           string    `yaml:"as,omitempty"`
	Asset        uint64    `yaml:"asset,omitempty"`
	Generation   uint32    `yaml:"generation,omitempty"`
	Name         string    `yaml:"name,omitempty"`
	BaseURI      string    `yaml:"base_uri,omitempty"`
	Price        ir.Amount `yaml:"price,omitempty"`
	Payment      ir.Amount `yaml:"payment,omitempty"`
	Prerequisite uint32    `yaml:"prerequisite,omitempty"`
	AutoUnlock   bool      `yaml:"auto_unlock,omitempty"`
	Available    bool      `yaml:"available,omitempty"`
	Owner        string    `yaml:"owner,omitempty"`

	// Expect describes the required outcome. Without it the step must not
	// be rejected.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the outcome of a step.
type Expect struct {
	// Error is the rejection reason, e.g. "generation already unlocked".
	Error string `yaml:"error,omitempty"`

	// Noop requires the step to succeed without changing state.
	Noop bool `yaml:"noop,omitempty"`

	// Refund is checked against the unlock receipt.
	Refund *ir.Amount `yaml:"refund,omitempty"`

	// ID is checked against the id returned by add_generation.
	ID *uint32 `yaml:"id,omitempty"`
}

// Assertion validates the final state or the journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Generation selects the tier (generation_state, unlocked).
	Generation *uint32 `yaml:"generation,omitempty"`

	// Asset selects the asset (asset_state, unlocked, event_count).
	Asset *uint64 `yaml:"asset,omitempty"`

	// Expect holds expected field values (generation_state, asset_state,
	// unlocked). Subset match.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Op filters journal events (event_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of journal events (event_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected relative order of journal ops (event_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertGenerationState = "generation_state"
	AssertAssetState      = "asset_state"
	AssertUnlocked        = "unlocked"
	AssertEventCount      = "event_count"
	AssertEventOrder      = "event_order"
	AssertReplay          = "replay"
	AssertInvariants      = "invariants"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// errors, and a relative catalog path is resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	if scenario.Catalog != "" {
		if _, err := os.Stat(scenario.Catalog); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalog not found: %s", scenario.Catalog)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Excess != "" {
		if _, err := engine.ParseExcessPolicy(s.Excess); err != nil {
			return err
		}
	}
	if s.Catalog != "" && len(s.Administrators) == 0 {
		return fmt.Errorf("a catalog needs at least one administrator to apply it")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if !knownOp(step.Op) {
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	if step.Op == OpTransfer && step.Owner == "" {
		return fmt.Errorf("steps[%d]: owner is required for transfer", index)
	}
	if step.Expect != nil && step.Expect.Error != "" && step.Expect.Noop {
		return fmt.Errorf("steps[%d].expect: error and noop are exclusive", index)
	}
	return nil
}

func knownOp(op string) bool {
	switch ir.Op(op) {
	case ir.OpAddGeneration, ir.OpRemoveGeneration, ir.OpEnableGeneration,
		ir.OpDisableGeneration, ir.OpSetGenerationName, ir.OpSetGenerationBaseURI,
		ir.OpSetGenerationPrice, ir.OpSetGenerationPrerequisite,
		ir.OpSetGenerationAvailability, ir.OpSetDefaultBaseURI,
		ir.OpUnlockGeneration, ir.OpActivateGeneration, ir.OpMint, ir.OpBurn:
		return true
	}
	return op == OpTransfer
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertGenerationState:
		if a.Generation == nil {
			return fmt.Errorf("assertions[%d]: generation is required for %s", index, a.Type)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertAssetState:
		if a.Asset == nil {
			return fmt.Errorf("assertions[%d]: asset is required for %s", index, a.Type)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertUnlocked:
		if a.Asset == nil || a.Generation == nil {
			return fmt.Errorf("assertions[%d]: asset and generation are required for %s", index, a.Type)
		}
		if _, ok := a.Expect["unlocked"].(bool); !ok {
			return fmt.Errorf("assertions[%d]: expect.unlocked (bool) is required for %s", index, a.Type)
		}
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertEventOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for %s", index, a.Type)
		}
	case AssertReplay, AssertInvariants:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
