package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mosshollow/questwick/internal/model"
)

// AuditStore is append-only. There are no update or delete methods on
// purpose.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

type AppendAuditParams struct {
	ActorID    int64
	ActorEmail string
	ActionType string
	EntityType string
	EntityID   int64
	BeforeJSON string
	AfterJSON  string
}

func (s *AuditStore) Append(p AppendAuditParams) (*model.AuditLogEntry, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO audit_log (id, actor_id, actor_email, action_type, entity_type, entity_id, before_json, after_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.ActorID, p.ActorEmail, p.ActionType, p.EntityType, p.EntityID, p.BeforeJSON, p.AfterJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT id, actor_id, actor_email, action_type, entity_type, entity_id, before_json, after_json, created_at
		 FROM audit_log WHERE id = ?`,
		id,
	)
	var e model.AuditLogEntry
	err = row.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.ActionType, &e.EntityType, &e.EntityID, &e.BeforeJSON, &e.AfterJSON, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("read back audit entry: %w", err)
	}
	return &e, nil
}

func (s *AuditStore) ListByEntity(entityType string, entityID int64) ([]model.AuditLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, actor_id, actor_email, action_type, entity_type, entity_id, before_json, after_json, created_at
		 FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY created_at ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var e model.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.ActionType, &e.EntityType, &e.EntityID, &e.BeforeJSON, &e.AfterJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
