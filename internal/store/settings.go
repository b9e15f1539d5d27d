package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/roach88/genlock/internal/ir"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getSetting(ctx context.Context, q queryer, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, true, nil
}

func setSetting(ctx context.Context, x execer, key, value string) error {
	_, err := x.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// Setting returns a raw setting value and whether it exists.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	return getSetting(ctx, s.db, key)
}

// SetSetting writes a raw setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, s.db, key, value)
}

// Administrators returns the stored administrator identities, sorted.
func (s *Store) Administrators(ctx context.Context) ([]ir.Identity, error) {
	raw, ok, err := s.Setting(ctx, SettingAdministrators)
	if err != nil || !ok {
		return []ir.Identity{}, err
	}
	var ids []ir.Identity
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode administrators: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// SetAdministrators replaces the administrator set.
func (s *Store) SetAdministrators(ctx context.Context, ids []ir.Identity) error {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if sorted == nil {
		sorted = []ir.Identity{}
	}
	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("encode administrators: %w", err)
	}
	return s.SetSetting(ctx, SettingAdministrators, string(data))
}

// MaxGenerations returns the stored catalog limit, or 0 if unset.
func (s *Store) MaxGenerations(ctx context.Context) (int, error) {
	raw, ok, err := s.Setting(ctx, SettingMaxGenerations)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", SettingMaxGenerations, err)
	}
	return n, nil
}

// SetMaxGenerations stores the catalog limit.
func (s *Store) SetMaxGenerations(ctx context.Context, n int) error {
	return s.SetSetting(ctx, SettingMaxGenerations, strconv.Itoa(n))
}
