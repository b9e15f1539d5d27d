package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/genlock/internal/ir"
)

// OwnerOf returns the holder of an asset, or "" if it has none.
// Implements engine.OwnershipOracle.
func (s *Store) OwnerOf(ctx context.Context, asset ir.AssetID) (ir.Identity, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT owner FROM owners WHERE asset_id = ?", asset.String()).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read owner of %s: %w", asset, err)
	}
	return ir.Identity(owner), nil
}

// SetOwner records (or transfers) an asset's holder.
func (s *Store) SetOwner(ctx context.Context, asset ir.AssetID, owner ir.Identity) error {
	if owner == "" {
		return fmt.Errorf("set owner of %s: empty identity", asset)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owners (asset_id, owner) VALUES (?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET owner = excluded.owner
	`, asset.String(), string(owner))
	if err != nil {
		return fmt.Errorf("set owner of %s: %w", asset, err)
	}
	return nil
}

// DeleteOwner forgets an asset's holder. Deleting an unknown asset is a
// no-op.
func (s *Store) DeleteOwner(ctx context.Context, asset ir.AssetID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM owners WHERE asset_id = ?", asset.String()); err != nil {
		return fmt.Errorf("delete owner of %s: %w", asset, err)
	}
	return nil
}
