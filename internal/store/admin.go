package store

import (
	"database/sql"
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
)

// AdminStore manages privilege claims. The count checks are folded into the
// mutating statements themselves, so "is this the last admin" and "is the
// admin set empty" are evaluated by SQLite at write time rather than in a
// separate read that could go stale.
type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM admin_claims`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *AdminStore) IsAdmin(email string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM admin_claims WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

// PromoteBootstrap grants the very first admin claim. The empty-set guard is
// part of the INSERT, so when two eligible candidates race only one row is
// written; the loser sees false.
func (s *AdminStore) PromoteBootstrap(email string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO admin_claims (email, granted_by)
		 SELECT ?, 'bootstrap'
		 WHERE (SELECT COUNT(*) FROM admin_claims) = 0`,
		email,
	)
	if err != nil {
		return false, fmt.Errorf("bootstrap promote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Promote grants a claim to an identity that does not already hold one.
func (s *AdminStore) Promote(email, grantedBy string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO admin_claims (email, granted_by) VALUES (?, ?)`,
		email, grantedBy,
	)
	if err != nil {
		return false, fmt.Errorf("promote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Demote removes a claim, but only while at least one other claim remains.
// The count guard rides in the DELETE itself: with two concurrent demotions
// the second statement sees a set of one and deletes nothing.
func (s *AdminStore) Demote(email string) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM admin_claims
		 WHERE email = ? AND (SELECT COUNT(*) FROM admin_claims) > 1`,
		email,
	)
	if err != nil {
		return false, fmt.Errorf("demote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *AdminStore) List() ([]model.AdminClaim, error) {
	rows, err := s.db.Query(`SELECT id, email, granted_by, created_at FROM admin_claims ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var claims []model.AdminClaim
	for rows.Next() {
		var c model.AdminClaim
		if err := rows.Scan(&c.ID, &c.Email, &c.GrantedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
