package engine

import (
	"context"
	"fmt"

	"github.com/roach88/genlock/internal/ir"
)

// ActivateGeneration makes an unlocked (or auto-unlock) tier the asset's
// live tier. Only the asset's owner may activate. Activating the tier that
// is already live succeeds without recording anything.
func (e *Engine) ActivateGeneration(ctx context.Context, caller ir.Identity, asset ir.AssetID, id ir.GenerationID) error {
	const op = ir.OpActivateGeneration
	e.mu.Lock()
	defer e.mu.Unlock()

	// An unknown tier is reported like a disabled one.
	g, ok := e.generation(id)
	if !ok || !g.Enabled {
		return e.reject(op, caller, ErrMustBeEnabled)
	}
	a, ok := e.assets[asset]
	if !ok {
		return e.reject(op, caller, ErrInvalidToken)
	}
	owner, err := e.owners.OwnerOf(ctx, asset)
	if err != nil {
		return fmt.Errorf("%s: owner of %s: %w", op, asset, err)
	}
	if owner == "" || owner != caller {
		return e.reject(op, caller, ErrNotOwner)
	}
	if !isUnlocked(a, g) {
		return e.reject(op, caller, ErrMustUnlockFirst)
	}
	if g.HasPrerequisite() && !isUnlocked(a, e.generations[g.Prerequisite]) {
		return e.reject(op, caller, ErrPrerequisiteLocked)
	}
	if a.Active == id {
		return nil
	}

	prev := e.generations[a.Active]
	if prev.Activations == 0 {
		return fmt.Errorf("%s: generation %d activations underflow", op, prev.ID)
	}
	prev.Activations--
	g.Activations++
	a = a.Clone()
	a.Active = id

	args := map[string]string{
		ir.ArgAsset:      asset.String(),
		ir.ArgGeneration: id.String(),
	}
	m := &ir.Mutation{Generations: []ir.Generation{prev, g}, Assets: []ir.Asset{a}}
	return e.commit(ctx, op, caller, args, m)
}
