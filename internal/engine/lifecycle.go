package engine

import (
	"context"
	"fmt"

	"github.com/roach88/genlock/internal/ir"
)

// Mint registers a new asset: genesis unlocked and active.
// Called by the asset substrate; no caller check applies.
func (e *Engine) Mint(ctx context.Context, asset ir.AssetID) error {
	const op = ir.OpMint
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.assets[asset]; exists {
		return e.reject(op, "", ErrAlreadyMinted)
	}

	genesis := e.generations[ir.Genesis]
	genesis.Unlocks++
	genesis.Activations++

	args := map[string]string{ir.ArgAsset: asset.String()}
	m := &ir.Mutation{Generations: []ir.Generation{genesis}, Assets: []ir.Asset{ir.NewAsset(asset)}}
	return e.commit(ctx, op, "", args, m)
}

// Burn removes an asset, releasing every unlock it held and its activation.
// Afterwards the asset reads as nonexistent.
func (e *Engine) Burn(ctx context.Context, asset ir.AssetID) error {
	const op = ir.OpBurn
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.assets[asset]
	if !ok {
		return e.reject(op, "", ErrInvalidToken)
	}

	touched := make(map[ir.GenerationID]ir.Generation)
	get := func(id ir.GenerationID) ir.Generation {
		if g, ok := touched[id]; ok {
			return g
		}
		return e.generations[id]
	}
	for _, id := range a.UnlockedIDs() {
		g := get(id)
		if g.Unlocks == 0 {
			return fmt.Errorf("%s: generation %d unlocks underflow", op, id)
		}
		g.Unlocks--
		touched[id] = g
	}
	g := get(a.Active)
	if g.Activations == 0 {
		return fmt.Errorf("%s: generation %d activations underflow", op, a.Active)
	}
	g.Activations--
	touched[a.Active] = g

	m := &ir.Mutation{BurnedAssets: []ir.AssetID{asset}}
	for id := range len(e.generations) {
		if g, ok := touched[ir.GenerationID(id)]; ok {
			m.Generations = append(m.Generations, g)
		}
	}

	args := map[string]string{ir.ArgAsset: asset.String()}
	return e.commit(ctx, op, "", args, m)
}
