package ir

import (
	"fmt"
	"strconv"

	"github.com/bits-and-blooms/bitset"
)

// GenerationID is the position of a generation in the catalog.
type GenerationID uint32

// Genesis is the generation every asset starts on. It always exists.
const Genesis GenerationID = 0

// String renders the id in decimal.
func (id GenerationID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseGenerationID parses a decimal generation id.
func ParseGenerationID(s string) (GenerationID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse generation id %q: %w", s, err)
	}
	return GenerationID(n), nil
}

// AssetID is the externally assigned identifier of an asset.
type AssetID uint64

// String renders the id in decimal.
func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseAssetID parses a decimal asset id.
func ParseAssetID(s string) (AssetID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse asset id %q: %w", s, err)
	}
	return AssetID(n), nil
}

// Identity names a caller (an account, wallet address or operator handle).
type Identity string

// Generation is one tier of the catalog.
type Generation struct {
	ID           GenerationID `json:"id"`
	Name         string       `json:"name"`
	BaseURI      string       `json:"base_uri"`
	Price        Amount       `json:"price"`
	Prerequisite GenerationID `json:"prerequisite"`
	AutoUnlock   bool         `json:"auto_unlock"`
	Enabled      bool         `json:"enabled"`
	Available    bool         `json:"available"`
	Unlocks      uint64       `json:"unlocks"`
	Activations  uint64       `json:"activations"`
}

// HasPrerequisite reports whether the generation depends on another tier.
// A generation that names itself has no prerequisite.
func (g Generation) HasPrerequisite() bool {
	return g.Prerequisite != g.ID
}

// GenerationSpec carries the administrator-supplied fields of a new
// generation.
type GenerationSpec struct {
	Name         string       `json:"name" yaml:"name"`
	BaseURI      string       `json:"base_uri" yaml:"base_uri"`
	Price        Amount       `json:"price" yaml:"price"`
	Prerequisite GenerationID `json:"prerequisite" yaml:"prerequisite"`
	AutoUnlock   bool         `json:"auto_unlock" yaml:"auto_unlock"`
}

// Asset is the per-token unlock and activation state.
type Asset struct {
	ID       AssetID        `json:"id"`
	Unlocked *bitset.BitSet `json:"-"`
	Active   GenerationID   `json:"active"`
}

// NewAsset returns a freshly minted asset: genesis unlocked and active.
func NewAsset(id AssetID) Asset {
	unlocked := bitset.New(64)
	unlocked.Set(uint(Genesis))
	return Asset{ID: id, Unlocked: unlocked, Active: Genesis}
}

// Clone returns a deep copy so the bitmask can be edited without touching
// the original.
func (a Asset) Clone() Asset {
	c := a
	if a.Unlocked != nil {
		c.Unlocked = a.Unlocked.Clone()
	} else {
		c.Unlocked = bitset.New(64)
	}
	return c
}

// HasBit reports whether the asset explicitly holds the generation.
func (a Asset) HasBit(id GenerationID) bool {
	return a.Unlocked != nil && a.Unlocked.Test(uint(id))
}

// UnlockedIDs lists the generation ids whose bit is set, ascending.
func (a Asset) UnlockedIDs() []GenerationID {
	if a.Unlocked == nil {
		return []GenerationID{}
	}
	ids := make([]GenerationID, 0, a.Unlocked.Count())
	for i, ok := a.Unlocked.NextSet(0); ok; i, ok = a.Unlocked.NextSet(i + 1) {
		ids = append(ids, GenerationID(i))
	}
	return ids
}

// Snapshot is a complete, detached copy of engine state.
type Snapshot struct {
	DefaultBaseURI string       `json:"default_base_uri"`
	Generations    []Generation `json:"generations"`
	Assets         []Asset      `json:"assets"` // ascending by id
}
