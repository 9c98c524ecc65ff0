package store

import (
	"database/sql"
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
)

type BadgeStore struct {
	db *sql.DB
}

func NewBadgeStore(db *sql.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func scanBadge(scanner interface{ Scan(...any) error }) (*model.Badge, error) {
	var b model.Badge
	var active int
	err := scanner.Scan(
		&b.ID, &b.Key, &b.Title, &b.CriteriaKind, &b.Threshold,
		&b.Category, &active, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Active = active != 0
	return &b, nil
}

const badgeCols = `id, key, title, criteria_kind, threshold, category, active, created_at`

func (s *BadgeStore) Create(key, title, criteriaKind string, threshold int, category string) (*model.Badge, error) {
	result, err := s.db.Exec(
		`INSERT INTO badges (key, title, criteria_kind, threshold, category) VALUES (?, ?, ?, ?, ?)`,
		key, title, criteriaKind, threshold, category,
	)
	if err != nil {
		return nil, fmt.Errorf("insert badge: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+badgeCols+` FROM badges WHERE id = ?`, id)
	return scanBadge(row)
}

func (s *BadgeStore) ListActive() ([]model.Badge, error) {
	rows, err := s.db.Query(`SELECT ` + badgeCols + ` FROM badges WHERE active = 1 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active badges: %w", err)
	}
	defer rows.Close()

	var badges []model.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

// Award records a badge for a user. The (user, badge) pair is unique in the
// schema, so a repeat award is a silent no-op; the returned bool reports
// whether a new record was created.
func (s *BadgeStore) Award(userID, badgeID int64) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO user_badges (user_id, badge_id) VALUES (?, ?)`,
		userID, badgeID,
	)
	if err != nil {
		return false, fmt.Errorf("award badge: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *BadgeStore) ListForUser(userID int64) ([]model.UserBadge, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, badge_id, awarded_at FROM user_badges WHERE user_id = ? ORDER BY awarded_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user badges: %w", err)
	}
	defer rows.Close()

	var awards []model.UserBadge
	for rows.Next() {
		var ub model.UserBadge
		if err := rows.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan user badge: %w", err)
		}
		awards = append(awards, ub)
	}
	return awards, rows.Err()
}
