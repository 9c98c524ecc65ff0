package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mosshollow/questwick/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var templateID, approvedBy sql.NullInt64
	var dueDate, submittedAt, approvedAt sql.NullTime
	var streakEligible int

	err := scanner.Scan(
		&t.ID, &t.HouseholdID, &templateID, &t.AssignedTo, &t.AssignedBy,
		&t.Title, &t.Description, &t.Category, &t.Points, &dueDate,
		&streakEligible, &t.Status, &t.Reflection, &t.RejectedReason,
		&submittedAt, &approvedAt, &approvedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateID.Valid {
		t.TemplateID = &templateID.Int64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if submittedAt.Valid {
		t.SubmittedAt = &submittedAt.Time
	}
	if approvedAt.Valid {
		t.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		t.ApprovedBy = &approvedBy.Int64
	}
	t.StreakEligible = streakEligible != 0
	return &t, nil
}

const taskCols = `id, household_id, template_id, assigned_to, assigned_by, title, description, category, points, due_date, streak_eligible, status, reflection, rejected_reason, submitted_at, approved_at, approved_by, created_at, updated_at`

type CreateTaskParams struct {
	HouseholdID    int64
	TemplateID     *int64
	AssignedTo     int64
	AssignedBy     int64
	Title          string
	Description    string
	Category       string
	Points         int
	DueDate        *time.Time
	StreakEligible bool
}

func (s *TaskStore) Create(p CreateTaskParams) (*model.Task, error) {
	var templateID sql.NullInt64
	if p.TemplateID != nil {
		templateID = sql.NullInt64{Int64: *p.TemplateID, Valid: true}
	}
	var dueDate sql.NullTime
	if p.DueDate != nil {
		dueDate = sql.NullTime{Time: *p.DueDate, Valid: true}
	}
	var streakEligible int
	if p.StreakEligible {
		streakEligible = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO tasks (household_id, template_id, assigned_to, assigned_by, title, description, category, points, due_date, streak_eligible)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.HouseholdID, templateID, p.AssignedTo, p.AssignedBy, p.Title,
		p.Description, p.Category, p.Points, dueDate, streakEligible,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Submit moves a task from pending to submitted. The write is conditional on
// the current status, so a concurrent transition loses cleanly: the returned
// bool is false when no row changed.
func (s *TaskStore) Submit(id int64, reflection string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'submitted', reflection = ?, rejected_reason = '',
		        submitted_at = datetime('now'), updated_at = datetime('now')
		 WHERE id = ? AND status = 'pending'`,
		reflection, id,
	)
	if err != nil {
		return false, fmt.Errorf("submit task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Approve moves a task from submitted to approved. Conditional on status, so
// two racing approvals credit points exactly once: only the caller that saw
// the row change runs the side effects.
func (s *TaskStore) Approve(id, approvedBy int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'approved', approved_by = ?,
		        approved_at = datetime('now'), updated_at = datetime('now')
		 WHERE id = ? AND status = 'submitted'`,
		approvedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("approve task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Reject returns a submitted task to pending. Rejection is a resubmission
// loop, not a dead end: the task stays assignable and carries the reason.
func (s *TaskStore) Reject(id int64, reason string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET status = 'pending', rejected_reason = ?,
		        submitted_at = NULL, updated_at = datetime('now')
		 WHERE id = ? AND status = 'submitted'`,
		reason, id,
	)
	if err != nil {
		return false, fmt.Errorf("reject task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *TaskStore) ListByAssignee(userID int64) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks WHERE assigned_to = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *TaskStore) ListByHousehold(householdID int64, status string) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE household_id = ?`
	args := []any{householdID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks by household: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ApprovedStreakDates returns the approval timestamps of a user's approved,
// streak-eligible tasks in ascending order. Input for streak recompute.
func (s *TaskStore) ApprovedStreakDates(userID int64) ([]time.Time, error) {
	rows, err := s.db.Query(
		`SELECT approved_at FROM tasks
		 WHERE assigned_to = ? AND status = 'approved' AND streak_eligible = 1 AND approved_at IS NOT NULL
		 ORDER BY approved_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("approved streak dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan approved date: %w", err)
		}
		dates = append(dates, at)
	}
	return dates, rows.Err()
}

// CountApproved returns the total approved tasks for a user, optionally
// restricted to a category.
func (s *TaskStore) CountApproved(userID int64, category string) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE assigned_to = ? AND status = 'approved'`
	args := []any{userID}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count approved: %w", err)
	}
	return count, nil
}

// SumApprovedPoints returns the total points a user has earned from approved
// tasks. Balances are always derived, never cached.
func (s *TaskStore) SumApprovedPoints(userID int64) (int, error) {
	var sum sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points), 0) FROM tasks WHERE assigned_to = ? AND status = 'approved'`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum approved points: %w", err)
	}
	return int(sum.Int64), nil
}
