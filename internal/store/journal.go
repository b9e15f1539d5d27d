package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/genlock/internal/ir"
)

// Setting keys.
const (
	SettingDefaultBaseURI = "default_base_uri"
	SettingAdministrators = "administrators"
	SettingMaxGenerations = "max_generations"
	SettingExcessPolicy   = "excess_policy"
)

// Apply writes one engine mutation: the event row and every state row it
// replaces, in a single transaction. Implements engine.Journal.
//
// The event's seq must be exactly one past the last stored event; anything
// else means two writers raced or the engine was restored from stale state.
func (s *Store) Apply(ctx context.Context, m *ir.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	last, err := lastSeq(ctx, tx)
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if m.Event.Seq != last+1 {
		return fmt.Errorf("apply: event seq %d does not follow stored seq %d", m.Event.Seq, last)
	}

	if err := insertEvent(ctx, tx, m.Event); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	if err := writeState(ctx, tx, m.RemovedGenerations, m.Generations, m.Assets, m.BurnedAssets, m.DefaultBaseURI); err != nil {
		return fmt.Errorf("apply seq %d: %w", m.Event.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply: commit: %w", err)
	}
	return nil
}

// Initialize seeds an empty database with the engine's starting state.
// It fails if the catalog already exists.
func (s *Store) Initialize(ctx context.Context, snap ir.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("initialize: begin tx: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM generations").Scan(&n); err != nil {
		return fmt.Errorf("initialize: count generations: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("initialize: database already holds a catalog")
	}

	uri := snap.DefaultBaseURI
	if err := writeState(ctx, tx, nil, snap.Generations, snap.Assets, nil, &uri); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("initialize: commit: %w", err)
	}
	return nil
}

func lastSeq(ctx context.Context, q queryer) (int64, error) {
	var seq int64
	if err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM events").Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev ir.Event) error {
	argsJSON, err := marshalArgs(ev.Args)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (seq, id, tx_id, op, caller, asset_id, args)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Seq,
		ev.ID,
		ev.TxID,
		string(ev.Op),
		string(ev.Caller),
		nullableAsset(ev),
		argsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert event %d: %w", ev.Seq, err)
	}
	return nil
}

// writeState applies row replacements. Removals run first so a tier id can
// be freed and reused.
func writeState(
	ctx context.Context,
	tx *sql.Tx,
	removed []ir.GenerationID,
	gens []ir.Generation,
	assets []ir.Asset,
	burned []ir.AssetID,
	defaultBaseURI *string,
) error {
	for _, id := range removed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM generations WHERE id = ?", int64(id)); err != nil {
			return fmt.Errorf("delete generation %d: %w", id, err)
		}
	}

	for _, g := range gens {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO generations
			(id, name, base_uri, price, prerequisite, auto_unlock, enabled, available, unlocks, activations)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				base_uri = excluded.base_uri,
				price = excluded.price,
				prerequisite = excluded.prerequisite,
				auto_unlock = excluded.auto_unlock,
				enabled = excluded.enabled,
				available = excluded.available,
				unlocks = excluded.unlocks,
				activations = excluded.activations
		`,
			int64(g.ID),
			g.Name,
			g.BaseURI,
			g.Price.String(),
			int64(g.Prerequisite),
			boolToInt(g.AutoUnlock),
			boolToInt(g.Enabled),
			boolToInt(g.Available),
			int64(g.Unlocks),
			int64(g.Activations),
		)
		if err != nil {
			return fmt.Errorf("write generation %d: %w", g.ID, err)
		}
	}

	for _, a := range assets {
		bits, err := marshalBits(a.Unlocked)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assets (id, unlocked, active)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				unlocked = excluded.unlocked,
				active = excluded.active
		`, a.ID.String(), bits, int64(a.Active))
		if err != nil {
			return fmt.Errorf("write asset %s: %w", a.ID, err)
		}
	}

	for _, id := range burned {
		if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id.String()); err != nil {
			return fmt.Errorf("delete asset %s: %w", id, err)
		}
	}

	if defaultBaseURI != nil {
		if err := setSetting(ctx, tx, SettingDefaultBaseURI, *defaultBaseURI); err != nil {
			return err
		}
	}
	return nil
}
