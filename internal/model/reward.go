package model

import "time"

type Reward struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PointCost   int       `json:"point_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Redemption statuses. Points are debited exactly once, at approval.
// Fulfillment is a parent-asserted physical-world event distinct from
// approval; rejected is terminal.
const (
	RedemptionRequested = "requested"
	RedemptionApproved  = "approved"
	RedemptionFulfilled = "fulfilled"
	RedemptionRejected  = "rejected"
)

type RewardRedemption struct {
	ID          int64      `json:"id"`
	RewardID    int64      `json:"reward_id"`
	HouseholdID int64      `json:"household_id"`
	RequestedBy int64      `json:"requested_by"`
	PointsCost  int        `json:"points_cost"`
	Status      string     `json:"status"`
	DecidedBy   *int64     `json:"decided_by,omitempty"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type PointBalance struct {
	UserID      int64  `json:"user_id"`
	UserName    string `json:"user_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}

// LeaderboardEntry is a point balance joined with streak counters, ordered
// by balance for display.
type LeaderboardEntry struct {
	PointBalance
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	QuestsDone    int `json:"quests_done"`
}
