package model

import "time"

// Quest template scopes.
const (
	TemplateScopeSystem    = "system"
	TemplateScopeHousehold = "household"
)

// QuestTemplate is a reusable quest definition. System templates are global
// and admin-owned; household templates belong to a single household.
type QuestTemplate struct {
	ID             int64     `json:"id"`
	Key            string    `json:"key"`
	Scope          string    `json:"scope"`
	HouseholdID    *int64    `json:"household_id,omitempty"`
	Title          string    `json:"title"`
	Category       string    `json:"category"`
	SuggestedPoints int      `json:"suggested_points"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Task statuses. Rejection is not terminal: a rejected task returns to
// pending so the child can redo and resubmit it.
const (
	TaskStatusPending   = "pending"
	TaskStatusSubmitted = "submitted"
	TaskStatusApproved  = "approved"
)

// Task is a quest instance assigned to a child.
type Task struct {
	ID             int64      `json:"id"`
	HouseholdID    int64      `json:"household_id"`
	TemplateID     *int64     `json:"template_id,omitempty"`
	AssignedTo     int64      `json:"assigned_to"`
	AssignedBy     int64      `json:"assigned_by"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Points         int        `json:"points"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	StreakEligible bool       `json:"streak_eligible"`
	Status         string     `json:"status"`
	Reflection     string     `json:"reflection,omitempty"`
	RejectedReason string     `json:"rejected_reason,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	ApprovedBy     *int64     `json:"approved_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
