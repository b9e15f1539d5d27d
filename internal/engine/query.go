package engine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/genlock/internal/ir"
)

// GenerationCount returns the number of tiers in the catalog.
func (e *Engine) GenerationCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.generations)
}

// Generation returns a copy of the tier with the given id.
func (e *Engine) Generation(id ir.GenerationID) (ir.Generation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.generation(id)
	if !ok {
		return ir.Generation{}, ErrInvalidGeneration
	}
	return g, nil
}

// Generations returns a copy of the whole catalog in id order.
func (e *Engine) Generations() []ir.Generation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.generations)
}

// IsGenerationUnlocked reports whether the asset can reach the tier: either
// the tier is auto-unlock or the asset holds its bit.
func (e *Engine) IsGenerationUnlocked(asset ir.AssetID, id ir.GenerationID) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.assets[asset]
	if !ok {
		return false, ErrInvalidToken
	}
	g, ok := e.generation(id)
	if !ok {
		return false, ErrInvalidGeneration
	}
	return isUnlocked(a, g), nil
}

// Asset returns a detached copy of the asset's ledger entry.
func (e *Engine) Asset(asset ir.AssetID) (ir.Asset, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.assets[asset]
	if !ok {
		return ir.Asset{}, ErrInvalidToken
	}
	return a.Clone(), nil
}

// ActiveGeneration returns the asset's live tier.
func (e *Engine) ActiveGeneration(asset ir.AssetID) (ir.GenerationID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.assets[asset]
	if !ok {
		return 0, ErrInvalidToken
	}
	return a.Active, nil
}

// GenerationBaseURI resolves the presentation URI of an asset: its live
// tier's base URI, or the catalog default when that is empty.
func (e *Engine) GenerationBaseURI(asset ir.AssetID) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.assets[asset]
	if !ok {
		return "", ErrInvalidToken
	}
	if uri := e.generations[a.Active].BaseURI; uri != "" {
		return uri, nil
	}
	return e.defaultBaseURI, nil
}

// DefaultBaseURI returns the catalog-wide fallback URI.
func (e *Engine) DefaultBaseURI() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaultBaseURI
}

// AssetCount returns the number of live assets.
func (e *Engine) AssetCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.assets)
}

// Seq returns the sequence number of the last applied event.
func (e *Engine) Seq() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock.Current()
}

// LastEvent returns the most recently applied event, if any operation has
// been applied since the engine was created or restored.
func (e *Engine) LastEvent() (ir.Event, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return ir.Event{}, false
	}
	ev := *e.last
	ev.Args = maps.Clone(ev.Args)
	return ev, true
}

// Snapshot returns a detached copy of the full state. Assets are ordered by
// ascending id.
func (e *Engine) Snapshot() ir.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot()
}

func (e *Engine) snapshot() ir.Snapshot {
	ids := slices.Sorted(maps.Keys(e.assets))
	assets := make([]ir.Asset, len(ids))
	for i, id := range ids {
		assets[i] = e.assets[id].Clone()
	}
	return ir.Snapshot{
		DefaultBaseURI: e.defaultBaseURI,
		Generations:    slices.Clone(e.generations),
		Assets:         assets,
	}
}

// StateHash returns the content hash of the current state.
func (e *Engine) StateHash() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, err := ir.StateHash(e.snapshot())
	if err != nil {
		return "", fmt.Errorf("state hash: %w", err)
	}
	return h, nil
}
