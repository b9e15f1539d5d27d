package store

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/genlock/internal/ir"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LoadSnapshot reads the current state and the seq of the last journaled
// event. Returns ErrNotInitialized if the catalog was never seeded.
func (s *Store) LoadSnapshot(ctx context.Context) (ir.Snapshot, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Snapshot{}, 0, fmt.Errorf("load snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	gens, err := readGenerations(ctx, tx)
	if err != nil {
		return ir.Snapshot{}, 0, err
	}
	if len(gens) == 0 {
		return ir.Snapshot{}, 0, ErrNotInitialized
	}

	assets, err := readAssets(ctx, tx)
	if err != nil {
		return ir.Snapshot{}, 0, err
	}

	uri, _, err := getSetting(ctx, tx, SettingDefaultBaseURI)
	if err != nil {
		return ir.Snapshot{}, 0, err
	}

	seq, err := lastSeq(ctx, tx)
	if err != nil {
		return ir.Snapshot{}, 0, err
	}

	return ir.Snapshot{DefaultBaseURI: uri, Generations: gens, Assets: assets}, seq, nil
}

func readGenerations(ctx context.Context, q queryer) ([]ir.Generation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, base_uri, price, prerequisite, auto_unlock, enabled, available, unlocks, activations
		FROM generations
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	gens := []ir.Generation{}
	for rows.Next() {
		var (
			g                        ir.Generation
			id, prereq               int64
			price                    string
			auto, enabled, available bool
			unlocks, activations     int64
		)
		if err := rows.Scan(&id, &g.Name, &g.BaseURI, &price, &prereq, &auto, &enabled, &available, &unlocks, &activations); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.Price, err = ir.ParseAmount(price)
		if err != nil {
			return nil, fmt.Errorf("generation %d: %w", id, err)
		}
		g.ID = ir.GenerationID(id)
		g.Prerequisite = ir.GenerationID(prereq)
		g.AutoUnlock, g.Enabled, g.Available = auto, enabled, available
		g.Unlocks, g.Activations = uint64(unlocks), uint64(activations)
		gens = append(gens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return gens, nil
}

func readAssets(ctx context.Context, q queryer) ([]ir.Asset, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, unlocked, active FROM assets")
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	assets := []ir.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}

	// Text keys sort lexically; the snapshot contract is numeric order.
	slices.SortFunc(assets, func(a, b ir.Asset) int { return cmp.Compare(a.ID, b.ID) })
	return assets, nil
}

func scanAsset(rows *sql.Rows) (ir.Asset, error) {
	var (
		rawID  string
		bits   []byte
		active int64
	)
	if err := rows.Scan(&rawID, &bits, &active); err != nil {
		return ir.Asset{}, fmt.Errorf("scan asset: %w", err)
	}
	id, err := ir.ParseAssetID(rawID)
	if err != nil {
		return ir.Asset{}, err
	}
	unlocked, err := unmarshalBits(bits)
	if err != nil {
		return ir.Asset{}, fmt.Errorf("asset %s: %w", rawID, err)
	}
	return ir.Asset{ID: id, Unlocked: unlocked, Active: ir.GenerationID(active)}, nil
}

// ReadEvents returns the full journal in seq order.
// Returns an empty slice (not nil) if nothing has been journaled.
func (s *Store) ReadEvents(ctx context.Context) ([]ir.Event, error) {
	return s.queryEvents(ctx, `
		SELECT seq, id, tx_id, op, caller, args
		FROM events
		ORDER BY seq ASC
	`)
}

// ReadAssetEvents returns the journal entries that touched one asset, in
// seq order.
func (s *Store) ReadAssetEvents(ctx context.Context, asset ir.AssetID) ([]ir.Event, error) {
	return s.queryEvents(ctx, `
		SELECT seq, id, tx_id, op, caller, args
		FROM events
		WHERE asset_id = ?
		ORDER BY seq ASC
	`, asset.String())
}

// LastSeq returns the seq of the last journaled event, or 0.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	return lastSeq(ctx, s.db)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev       ir.Event
			op       string
			caller   string
			argsJSON string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.TxID, &op, &caller, &argsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Op = ir.Op(op)
		ev.Caller = ir.Identity(caller)
		ev.Args, err = unmarshalArgs(argsJSON)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
