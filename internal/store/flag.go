package store

import (
	"database/sql"
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
)

type FlagStore struct {
	db *sql.DB
}

func NewFlagStore(db *sql.DB) *FlagStore {
	return &FlagStore{db: db}
}

func scanFlag(scanner interface{ Scan(...any) error }) (*model.FeatureFlag, error) {
	var f model.FeatureFlag
	var enabled int
	err := scanner.Scan(&f.ID, &f.ScopeType, &f.ScopeID, &f.Key, &enabled, &f.ValueJSON, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Enabled = enabled != 0
	return &f, nil
}

const flagCols = `id, scope_type, scope_id, key, enabled, value_json, updated_at`

// Set creates or overwrites a flag. Last write wins; there is no versioning.
func (s *FlagStore) Set(scopeType string, scopeID int64, key string, enabled bool, valueJSON string) (*model.FeatureFlag, error) {
	var e int
	if enabled {
		e = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO feature_flags (scope_type, scope_id, key, enabled, value_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (scope_type, scope_id, key) DO UPDATE SET
		     enabled = excluded.enabled,
		     value_json = excluded.value_json,
		     updated_at = excluded.updated_at`,
		scopeType, scopeID, key, e, valueJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("set flag: %w", err)
	}
	return s.Get(scopeType, scopeID, key)
}

func (s *FlagStore) Get(scopeType string, scopeID int64, key string) (*model.FeatureFlag, error) {
	row := s.db.QueryRow(
		`SELECT `+flagCols+` FROM feature_flags WHERE scope_type = ? AND scope_id = ? AND key = ?`,
		scopeType, scopeID, key,
	)
	f, err := scanFlag(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}
	return f, nil
}

func (s *FlagStore) Delete(scopeType string, scopeID int64, key string) error {
	_, err := s.db.Exec(
		`DELETE FROM feature_flags WHERE scope_type = ? AND scope_id = ? AND key = ?`,
		scopeType, scopeID, key,
	)
	if err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	return nil
}
