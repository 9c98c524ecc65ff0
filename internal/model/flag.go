package model

import "time"

// Feature flag scopes, from most to least specific. Lookup resolves the most
// specific matching scope first: user, then household, then global.
const (
	FlagScopeGlobal    = "global"
	FlagScopeHousehold = "household"
	FlagScopeUser      = "user"
)

// FeatureFlag is a scoped boolean switch with an optional JSON payload.
// Last write wins; there is no versioning.
type FeatureFlag struct {
	ID        int64     `json:"id"`
	ScopeType string    `json:"scope_type"`
	ScopeID   int64     `json:"scope_id"` // 0 for global
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	ValueJSON string    `json:"value_json,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
