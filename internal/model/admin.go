package model

import "time"

// AdminClaim is a privilege grant on an identity. Admin-ness is a claim on
// the identity record, not a user role: the set of claims must never be
// emptied by a demotion.
type AdminClaim struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	GrantedBy string    `json:"granted_by"` // email of the granting admin, or "bootstrap"
	CreatedAt time.Time `json:"created_at"`
}
