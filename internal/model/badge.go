package model

import "time"

// Badge criteria kinds. Each badge carries exactly one criteria shape,
// stored as tagged columns rather than an opaque JSON blob.
const (
	CriteriaQuestsCompleted = "quests_completed"
	CriteriaStreakDays      = "streak_days"
	CriteriaCategoryCount   = "category_count"
)

type Badge struct {
	ID           int64     `json:"id"`
	Key          string    `json:"key"`
	Title        string    `json:"title"`
	CriteriaKind string    `json:"criteria_kind"`
	Threshold    int       `json:"threshold"`
	Category     string    `json:"category,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserBadge is the award record. At most one exists per (user, badge) pair.
type UserBadge struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BadgeID   int64     `json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"`
}
