package store

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/mosshollow/questwick/internal/model"
)

// ErrPairExists means a pending or approved friendship already links the
// pair, in either direction.
var ErrPairExists = errors.New("friendship already exists for this pair")

type FriendshipStore struct {
	db *sql.DB
}

func NewFriendshipStore(db *sql.DB) *FriendshipStore {
	return &FriendshipStore{db: db}
}

func scanFriendship(scanner interface{ Scan(...any) error }) (*model.Friendship, error) {
	var f model.Friendship
	var decidedBy sql.NullInt64
	var decidedAt sql.NullTime

	err := scanner.Scan(&f.ID, &f.RequesterID, &f.FriendID, &f.Status, &decidedBy, &decidedAt, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	if decidedBy.Valid {
		f.DecidedBy = &decidedBy.Int64
	}
	if decidedAt.Valid {
		f.DecidedAt = &decidedAt.Time
	}
	return &f, nil
}

const friendshipCols = `id, requester_id, friend_id, status, decided_by, decided_at, created_at`

// CreatePending inserts a pending friendship. The unique index over the
// ordered pair rejects a second live row even when two requests race, so the
// insert itself is the duplicate check.
func (s *FriendshipStore) CreatePending(requesterID, friendID int64) (*model.Friendship, error) {
	result, err := s.db.Exec(
		`INSERT INTO friendships (requester_id, friend_id) VALUES (?, ?)`,
		requesterID, friendID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrPairExists
		}
		return nil, fmt.Errorf("insert friendship: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FriendshipStore) GetByID(id int64) (*model.Friendship, error) {
	row := s.db.QueryRow(`SELECT `+friendshipCols+` FROM friendships WHERE id = ?`, id)
	f, err := scanFriendship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

// Decide moves a pending friendship to approved or denied, conditionally on
// it still being pending.
func (s *FriendshipStore) Decide(id, decidedBy int64, status string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE friendships SET status = ?, decided_by = ?, decided_at = datetime('now')
		 WHERE id = ? AND status = 'pending'`,
		status, decidedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("decide friendship: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListApprovedForUser returns the user IDs of a user's approved friends,
// regardless of which side initiated the request.
func (s *FriendshipStore) ListApprovedForUser(userID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT CASE WHEN requester_id = ? THEN friend_id ELSE requester_id END
		 FROM friendships
		 WHERE status = 'approved' AND (requester_id = ? OR friend_id = ?)`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list approved friends: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *FriendshipStore) ListPendingForParent(householdID int64) ([]model.Friendship, error) {
	rows, err := s.db.Query(
		`SELECT f.id, f.requester_id, f.friend_id, f.status, f.decided_by, f.decided_at, f.created_at
		 FROM friendships f
		 JOIN users u ON u.id = f.requester_id
		 WHERE f.status = 'pending' AND u.household_id = ?
		 ORDER BY f.created_at ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending friendships: %w", err)
	}
	defer rows.Close()

	var friendships []model.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		friendships = append(friendships, *f)
	}
	return friendships, rows.Err()
}

// --- Invite codes ---

const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// generateCode returns an 8-character friend code. The alphabet skips
// lookalike characters (I, L, O, 0, 1).
func generateCode() (string, error) {
	buf := make([]byte, 8)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// RegenerateCode issues a fresh invite code for a child, deactivating any
// previous code in the same transaction so the old code stops resolving the
// instant the new one exists.
func (s *FriendshipStore) RegenerateCode(userID int64) (*model.InviteCode, error) {
	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE invite_codes SET active = 0 WHERE user_id = ? AND active = 1`, userID); err != nil {
		return nil, fmt.Errorf("deactivate old code: %w", err)
	}

	result, err := tx.Exec(`INSERT INTO invite_codes (user_id, code) VALUES (?, ?)`, userID, code)
	if err != nil {
		return nil, fmt.Errorf("insert invite code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRow(`SELECT id, user_id, code, active, created_at FROM invite_codes WHERE id = ?`, id)
	return scanInviteCode(row)
}

func scanInviteCode(scanner interface{ Scan(...any) error }) (*model.InviteCode, error) {
	var ic model.InviteCode
	var active int
	err := scanner.Scan(&ic.ID, &ic.UserID, &ic.Code, &active, &ic.CreatedAt)
	if err != nil {
		return nil, err
	}
	ic.Active = active != 0
	return &ic, nil
}

// ActiveCodeForUser returns the child's current code, or nil if none issued.
func (s *FriendshipStore) ActiveCodeForUser(userID int64) (*model.InviteCode, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, code, active, created_at FROM invite_codes WHERE user_id = ? AND active = 1`,
		userID,
	)
	ic, err := scanInviteCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active code for user: %w", err)
	}
	return ic, nil
}

// ResolveCode returns the user ID an active code belongs to, or 0 if the
// code does not resolve.
func (s *FriendshipStore) ResolveCode(code string) (int64, error) {
	var userID int64
	err := s.db.QueryRow(
		`SELECT user_id FROM invite_codes WHERE code = ? AND active = 1`,
		code,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve code: %w", err)
	}
	return userID, nil
}
