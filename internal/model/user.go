package model

import "time"

// User roles within a household.
const (
	RoleParent = "parent"
	RoleChild  = "child"
)

// User account statuses.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Age bands for children. Coarse on purpose: the app never stores a birthdate.
const (
	AgeBandYoung = "young"  // roughly pre-reader
	AgeBandKid   = "kid"    // elementary
	AgeBandTeen  = "teen"   // secondary
	AgeBandNone  = ""       // parents
)

type User struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	AgeBand     string    `json:"age_band,omitempty"`
	Status      string    `json:"status"`
	AvatarEmoji string    `json:"avatar_emoji"`
	HasPIN      bool      `json:"has_pin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsParent reports whether the user holds the parent role.
func (u *User) IsParent() bool { return u.Role == RoleParent }

// IsChild reports whether the user holds the child role.
func (u *User) IsChild() bool { return u.Role == RoleChild }
