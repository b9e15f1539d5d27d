package engine

import (
	"context"
	"strconv"

	"github.com/roach88/genlock/internal/ir"
)

// requireAdmin rejects callers the Authorizer does not recognize.
func (e *Engine) requireAdmin(op ir.Op, caller ir.Identity) error {
	if !e.auth.IsAdministrator(caller) {
		return e.reject(op, caller, ErrNotAdministrator)
	}
	return nil
}

// adminTarget runs the checks shared by every per-tier administrator
// operation and returns the tier. Caller must hold the write lock.
func (e *Engine) adminTarget(op ir.Op, caller ir.Identity, id ir.GenerationID) (ir.Generation, error) {
	if err := e.requireAdmin(op, caller); err != nil {
		return ir.Generation{}, err
	}
	g, ok := e.generation(id)
	if !ok {
		return ir.Generation{}, e.reject(op, caller, ErrInvalidGeneration)
	}
	return g, nil
}

// validPrerequisite applies the prerequisite rule to the tier at position
// id. Edges only point backwards, so the prerequisite graph is acyclic by
// construction.
//
//   - prereq == id means "no prerequisite", which auto-unlock tiers may not use
//   - prereq must already exist and be lower than id
//   - genesis is always a valid anchor
//   - any other auto-unlock tier is never a valid prerequisite
func (e *Engine) validPrerequisite(id, prereq ir.GenerationID, autoUnlock bool) bool {
	if prereq == id {
		return !autoUnlock
	}
	if prereq > id || int(prereq) >= len(e.generations) {
		return false
	}
	if prereq == ir.Genesis {
		return true
	}
	return !e.generations[prereq].AutoUnlock
}

// AddGeneration appends a new, disabled and unavailable tier to the catalog
// and returns its id.
func (e *Engine) AddGeneration(ctx context.Context, caller ir.Identity, spec ir.GenerationSpec) (ir.GenerationID, error) {
	const op = ir.OpAddGeneration
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(op, caller); err != nil {
		return 0, err
	}
	name := ir.NormalizeName(spec.Name)
	if name == "" {
		return 0, e.reject(op, caller, ErrInvalidName)
	}
	if spec.AutoUnlock && !spec.Price.IsZero() {
		return 0, e.reject(op, caller, ErrAutoUnlockPriced)
	}
	if len(e.generations) >= e.maxGenerations {
		return 0, e.reject(op, caller, ErrGenerationLimitReached)
	}
	id := ir.GenerationID(len(e.generations))
	if !e.validPrerequisite(id, spec.Prerequisite, spec.AutoUnlock) {
		return 0, e.reject(op, caller, ErrInvalidPrerequisite)
	}

	g := ir.Generation{
		ID:           id,
		Name:         name,
		BaseURI:      spec.BaseURI,
		Price:        spec.Price,
		Prerequisite: spec.Prerequisite,
		AutoUnlock:   spec.AutoUnlock,
	}
	args := map[string]string{
		ir.ArgGeneration:   id.String(),
		ir.ArgName:         name,
		ir.ArgBaseURI:      spec.BaseURI,
		ir.ArgPrice:        spec.Price.String(),
		ir.ArgPrerequisite: spec.Prerequisite.String(),
		ir.ArgAutoUnlock:   strconv.FormatBool(spec.AutoUnlock),
	}
	if err := e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}}); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveGeneration deletes the most recently added tier. The tier must be
// disabled and no asset may hold or activate it. Genesis is never removed.
func (e *Engine) RemoveGeneration(ctx context.Context, caller ir.Identity, id ir.GenerationID) error {
	const op = ir.OpRemoveGeneration
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}
	switch {
	case id == ir.Genesis:
		return e.reject(op, caller, ErrGenesisRemoval)
	case int(id) != len(e.generations)-1:
		return e.reject(op, caller, ErrNotTail)
	case g.Enabled:
		return e.reject(op, caller, ErrMustBeDisabled)
	case g.Activations > 0:
		return e.reject(op, caller, ErrActivelyUsed)
	case g.Unlocks > 0:
		return e.reject(op, caller, ErrHasUnlocks)
	}

	args := map[string]string{ir.ArgGeneration: id.String()}
	return e.commit(ctx, op, caller, args, &ir.Mutation{RemovedGenerations: []ir.GenerationID{id}})
}

// EnableGeneration opens a tier for unlocking and activation. A tier with a
// prerequisite can only be enabled once the prerequisite is.
func (e *Engine) EnableGeneration(ctx context.Context, caller ir.Identity, id ir.GenerationID) error {
	const op = ir.OpEnableGeneration
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}
	if g.Enabled {
		return e.reject(op, caller, ErrMustBeDisabled)
	}
	if g.HasPrerequisite() && !e.generations[g.Prerequisite].Enabled {
		return e.reject(op, caller, ErrPrerequisiteDisabled)
	}

	g.Enabled = true
	args := map[string]string{ir.ArgGeneration: id.String()}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// DisableGeneration closes a tier for editing. Auto-unlock tiers must have
// no activations; paid tiers must have no unlocks.
func (e *Engine) DisableGeneration(ctx context.Context, caller ir.Identity, id ir.GenerationID) error {
	const op = ir.OpDisableGeneration
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}
	if !g.Enabled {
		return e.reject(op, caller, ErrMustBeEnabled)
	}
	if g.AutoUnlock && g.Activations > 0 {
		return e.reject(op, caller, ErrActivelyUsed)
	}
	if !g.AutoUnlock && g.Unlocks > 0 {
		return e.reject(op, caller, ErrHasUnlocks)
	}

	g.Enabled = false
	args := map[string]string{ir.ArgGeneration: id.String()}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// SetGenerationName renames a disabled tier.
func (e *Engine) SetGenerationName(ctx context.Context, caller ir.Identity, id ir.GenerationID, name string) error {
	const op = ir.OpSetGenerationName
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}
	if g.Enabled {
		return e.reject(op, caller, ErrMustBeDisabled)
	}
	name = ir.NormalizeName(name)
	if name == "" {
		return e.reject(op, caller, ErrInvalidName)
	}

	g.Name = name
	args := map[string]string{ir.ArgGeneration: id.String(), ir.ArgName: name}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// SetGenerationBaseURI changes a tier's presentation URI. It is allowed in
// any state; an empty value defers to the catalog default.
func (e *Engine) SetGenerationBaseURI(ctx context.Context, caller ir.Identity, id ir.GenerationID, uri string) error {
	const op = ir.OpSetGenerationBaseURI
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}

	g.BaseURI = uri
	args := map[string]string{ir.ArgGeneration: id.String(), ir.ArgBaseURI: uri}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// SetGenerationPrice reprices a disabled paid tier.
func (e *Engine) SetGenerationPrice(ctx context.Context, caller ir.Identity, id ir.GenerationID, price ir.Amount) error {
	const op = ir.OpSetGenerationPrice
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}
	if g.Enabled {
		return e.reject(op, caller, ErrMustBeDisabled)
	}
	if g.AutoUnlock {
		return e.reject(op, caller, ErrAutoUnlockMustBeFree)
	}

	g.Price = price
	args := map[string]string{ir.ArgGeneration: id.String(), ir.ArgPrice: price.String()}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// SetGenerationPrerequisite re-points a disabled tier's prerequisite. Apart
// from genesis and the tier itself, the new prerequisite must be enabled.
func (e *Engine) SetGenerationPrerequisite(ctx context.Context, caller ir.Identity, id, prereq ir.GenerationID) error {
	const op = ir.OpSetGenerationPrerequisite
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}
	if g.Enabled {
		return e.reject(op, caller, ErrMustBeDisabled)
	}
	if !e.validPrerequisite(id, prereq, g.AutoUnlock) {
		return e.reject(op, caller, ErrInvalidPrerequisite)
	}
	if prereq != id && prereq != ir.Genesis && !e.generations[prereq].Enabled {
		return e.reject(op, caller, ErrPrerequisiteDisabled)
	}

	g.Prerequisite = prereq
	args := map[string]string{ir.ArgGeneration: id.String(), ir.ArgPrerequisite: prereq.String()}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// SetGenerationAvailability opens or closes a tier for purchase without
// touching its enabled state.
func (e *Engine) SetGenerationAvailability(ctx context.Context, caller ir.Identity, id ir.GenerationID, available bool) error {
	const op = ir.OpSetGenerationAvailability
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.adminTarget(op, caller, id)
	if err != nil {
		return err
	}

	g.Available = available
	args := map[string]string{ir.ArgGeneration: id.String(), ir.ArgAvailable: strconv.FormatBool(available)}
	return e.commit(ctx, op, caller, args, &ir.Mutation{Generations: []ir.Generation{g}})
}

// SetDefaultBaseURI changes the URI served for assets whose active tier has
// no base URI of its own.
func (e *Engine) SetDefaultBaseURI(ctx context.Context, caller ir.Identity, uri string) error {
	const op = ir.OpSetDefaultBaseURI
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(op, caller); err != nil {
		return err
	}

	args := map[string]string{ir.ArgBaseURI: uri}
	return e.commit(ctx, op, caller, args, &ir.Mutation{DefaultBaseURI: &uri})
}
