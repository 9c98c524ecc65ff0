package store

import (
	"database/sql"
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

// Get returns the cached streak counters, zero-valued if never computed.
func (s *StreakStore) Get(userID int64) (*model.Streak, error) {
	var st model.Streak
	err := s.db.QueryRow(
		`SELECT user_id, current_streak, longest_streak, updated_at FROM streaks WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &st.CurrentStreak, &st.LongestStreak, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return &model.Streak{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return &st, nil
}

// Upsert overwrites the cached counters with freshly recomputed values.
func (s *StreakStore) Upsert(userID int64, current, longest int) error {
	_, err := s.db.Exec(
		`INSERT INTO streaks (user_id, current_streak, longest_streak, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT (user_id) DO UPDATE SET
		     current_streak = excluded.current_streak,
		     longest_streak = excluded.longest_streak,
		     updated_at = excluded.updated_at`,
		userID, current, longest,
	)
	if err != nil {
		return fmt.Errorf("upsert streak: %w", err)
	}
	return nil
}
