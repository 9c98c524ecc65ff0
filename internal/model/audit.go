package model

import "time"

// AuditLogEntry is an immutable record of a state-changing operation.
// Entries are only ever appended, never updated or deleted.
type AuditLogEntry struct {
	ID         string    `json:"id"`
	ActorID    int64     `json:"actor_id"`
	ActorEmail string    `json:"actor_email,omitempty"`
	ActionType string    `json:"action_type"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	BeforeJSON string    `json:"before_json,omitempty"`
	AfterJSON  string    `json:"after_json,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
