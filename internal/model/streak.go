package model

import "time"

// Streak holds the cached streak counters for a user. The counters are
// always recomputed from approved task history, never trusted incrementally.
type Streak struct {
	UserID        int64     `json:"user_id"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	UpdatedAt     time.Time `json:"updated_at"`
}
