package model

import "time"

// Notification kinds.
const (
	NotifQuestAssigned      = "quest_assigned"
	NotifQuestSubmitted     = "quest_submitted"
	NotifQuestApproved      = "quest_approved"
	NotifQuestRejected      = "quest_rejected"
	NotifRedemptionRequested = "redemption_requested"
	NotifRedemptionDecided  = "redemption_decided"
	NotifFriendRequested    = "friend_requested"
	NotifFriendDecided      = "friend_decided"
	NotifBadgeAwarded       = "badge_awarded"
)

// Notification is an outbox record of a dispatched (or to-be-dispatched)
// notification. The outbox is what makes the replay job possible.
type Notification struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id"`
	HouseholdID int64      `json:"household_id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type PushSubscription struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	HouseholdID int64     `json:"household_id"`
	Endpoint    string    `json:"endpoint"`
	P256dhKey   string    `json:"p256dh_key"`
	AuthKey     string    `json:"auth_key"`
	DeviceName  string    `json:"device_name"`
	CreatedAt   time.Time `json:"created_at"`
}
