package engine

import (
	"context"
	"sync"

	"github.com/roach88/genlock/internal/ir"
)

// AdminSet is a fixed set of administrator identities.
type AdminSet map[ir.Identity]struct{}

// NewAdminSet builds an AdminSet from the given identities.
func NewAdminSet(ids ...ir.Identity) AdminSet {
	s := make(AdminSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// IsAdministrator implements Authorizer.
func (s AdminSet) IsAdministrator(id ir.Identity) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// OwnerMap is an in-memory ownership oracle for tests and embedding.
// The zero value reports every asset as unowned and ignores Delete; Set
// needs a map built by NewOwnerMap.
type OwnerMap struct {
	mu     *sync.RWMutex
	owners map[ir.AssetID]ir.Identity
}

// NewOwnerMap creates an empty, writable OwnerMap.
func NewOwnerMap() OwnerMap {
	return OwnerMap{mu: &sync.RWMutex{}, owners: make(map[ir.AssetID]ir.Identity)}
}

// Set records the holder of an asset. It panics on a zero OwnerMap.
func (m OwnerMap) Set(asset ir.AssetID, owner ir.Identity) {
	if m.mu == nil {
		panic("engine: OwnerMap.Set on zero value, use NewOwnerMap")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[asset] = owner
}

// Delete forgets an asset's holder.
func (m OwnerMap) Delete(asset ir.AssetID) {
	if m.mu == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owners, asset)
}

// OwnerOf implements OwnershipOracle.
func (m OwnerMap) OwnerOf(_ context.Context, asset ir.AssetID) (ir.Identity, error) {
	if m.mu == nil {
		return "", nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owners[asset], nil
}

// permissive grants every capability. Replay uses it because the journal
// only holds operations that passed authorization when first applied.
type permissive struct {
	caller ir.Identity
}

func (permissive) IsAdministrator(ir.Identity) bool { return true }

func (p *permissive) OwnerOf(context.Context, ir.AssetID) (ir.Identity, error) {
	return p.caller, nil
}
