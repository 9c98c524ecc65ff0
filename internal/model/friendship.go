package model

import "time"

// Friendship statuses. Approval authority belongs to the requesting child's
// household, not the friend's.
const (
	FriendshipPending  = "pending"
	FriendshipApproved = "approved"
	FriendshipDenied   = "denied"
)

// Friendship is a directed request from one child to another, created by
// resolving the target's invite code. Approval is bidirectional in effect.
type Friendship struct {
	ID          int64      `json:"id"`
	RequesterID int64      `json:"requester_id"`
	FriendID    int64      `json:"friend_id"`
	Status      string     `json:"status"`
	DecidedBy   *int64     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// InviteCode is a child's shareable friend code. A child has at most one
// active code; regeneration deactivates the previous code atomically.
type InviteCode struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
