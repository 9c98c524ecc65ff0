package store

import (
	"database/sql"
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

// --- Reward catalog ---

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.HouseholdID, &r.Title, &r.Description, &r.PointCost, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, household_id, title, description, point_cost, active, created_at`

func (s *RewardStore) Create(householdID int64, title, description string, pointCost int, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO rewards (household_id, title, description, point_cost, active) VALUES (?, ?, ?, ?, ?)`,
		householdID, title, description, pointCost, a,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns a household's rewards, active first, then by title.
func (s *RewardStore) List(householdID int64) ([]model.Reward, error) {
	rows, err := s.db.Query(
		`SELECT `+rewardCols+` FROM rewards WHERE household_id = ? ORDER BY active DESC, title ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, title, description string, pointCost int, active bool) (*model.Reward, error) {
	var a int
	if active {
		a = 1
	}

	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, point_cost = ?, active = ? WHERE id = ?`,
		title, description, pointCost, a, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

// --- Redemptions ---

func scanRedemption(scanner interface{ Scan(...any) error }) (*model.RewardRedemption, error) {
	var r model.RewardRedemption
	var decidedBy sql.NullInt64
	var decidedAt, fulfilledAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.RewardID, &r.HouseholdID, &r.RequestedBy, &r.PointsCost,
		&r.Status, &decidedBy, &decidedAt, &fulfilledAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if decidedBy.Valid {
		r.DecidedBy = &decidedBy.Int64
	}
	if decidedAt.Valid {
		r.DecidedAt = &decidedAt.Time
	}
	if fulfilledAt.Valid {
		r.FulfilledAt = &fulfilledAt.Time
	}
	return &r, nil
}

const redemptionCols = `id, reward_id, household_id, requested_by, points_cost, status, decided_by, decided_at, fulfilled_at, created_at`

func (s *RewardStore) CreateRedemption(rewardID, householdID, requestedBy int64, pointsCost int) (*model.RewardRedemption, error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_redemptions (reward_id, household_id, requested_by, points_cost) VALUES (?, ?, ?, ?)`,
		rewardID, householdID, requestedBy, pointsCost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRedemption(id)
}

func (s *RewardStore) GetRedemption(id int64) (*model.RewardRedemption, error) {
	row := s.db.QueryRow(`SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

// Decide moves a redemption from requested to approved or rejected. The
// conditional write makes the decision take effect exactly once: the debit
// is the approved row itself counting against the balance, so there is
// nothing to double-apply.
func (s *RewardStore) Decide(id, decidedBy int64, status string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_redemptions SET status = ?, decided_by = ?, decided_at = datetime('now')
		 WHERE id = ? AND status = 'requested'`,
		status, decidedBy, id,
	)
	if err != nil {
		return false, fmt.Errorf("decide redemption: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Fulfill marks an approved redemption as handed over in the physical world.
func (s *RewardStore) Fulfill(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_redemptions SET status = 'fulfilled', fulfilled_at = datetime('now')
		 WHERE id = ? AND status = 'approved'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("fulfill redemption: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *RewardStore) ListRedemptionsByUser(userID int64) ([]model.RewardRedemption, error) {
	rows, err := s.db.Query(
		`SELECT `+redemptionCols+` FROM reward_redemptions WHERE requested_by = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions by user: %w", err)
	}
	defer rows.Close()

	var redemptions []model.RewardRedemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// --- Point balances ---

// GetPointBalance computes earned minus spent for a single user. Earned is
// the sum of approved task points; spent counts only redemptions that were
// actually approved or fulfilled.
func (s *RewardStore) GetPointBalance(userID int64) (*model.PointBalance, error) {
	var earned sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(points), 0) FROM tasks WHERE assigned_to = ? AND status = 'approved'`,
		userID,
	).Scan(&earned)
	if err != nil {
		return nil, fmt.Errorf("sum points earned: %w", err)
	}

	var spent sql.NullInt64
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(points_cost), 0) FROM reward_redemptions
		 WHERE requested_by = ? AND status IN ('approved', 'fulfilled')`,
		userID,
	).Scan(&spent)
	if err != nil {
		return nil, fmt.Errorf("sum points spent: %w", err)
	}

	var name string
	err = s.db.QueryRow(`SELECT name FROM users WHERE id = ?`, userID).Scan(&name)
	if err == sql.ErrNoRows {
		name = "Unknown"
	} else if err != nil {
		return nil, fmt.Errorf("get user name: %w", err)
	}

	totalEarned := int(earned.Int64)
	totalSpent := int(spent.Int64)

	return &model.PointBalance{
		UserID:      userID,
		UserName:    name,
		TotalEarned: totalEarned,
		TotalSpent:  totalSpent,
		Balance:     totalEarned - totalSpent,
	}, nil
}

// Leaderboard returns balances joined with streaks for a household's children
// plus their approved friends, ordered by balance descending.
func (s *RewardStore) Leaderboard(householdID int64) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.name,
		        COALESCE((SELECT SUM(points) FROM tasks WHERE assigned_to = u.id AND status = 'approved'), 0) AS earned,
		        COALESCE((SELECT SUM(points_cost) FROM reward_redemptions WHERE requested_by = u.id AND status IN ('approved', 'fulfilled')), 0) AS spent,
		        COALESCE(st.current_streak, 0), COALESCE(st.longest_streak, 0),
		        (SELECT COUNT(*) FROM tasks WHERE assigned_to = u.id AND status = 'approved')
		 FROM users u
		 LEFT JOIN streaks st ON st.user_id = u.id
		 WHERE u.role = 'child' AND u.status = 'active' AND (
		     u.household_id = ?
		     OR u.id IN (
		         SELECT f.friend_id FROM friendships f
		         JOIN users r ON r.id = f.requester_id
		         WHERE f.status = 'approved' AND r.household_id = ?
		     )
		     OR u.id IN (
		         SELECT f.requester_id FROM friendships f
		         JOIN users fr ON fr.id = f.friend_id
		         WHERE f.status = 'approved' AND fr.household_id = ?
		     )
		 )
		 ORDER BY earned - spent DESC, u.id ASC`,
		householdID, householdID, householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var earned, spent int
		if err := rows.Scan(&e.UserID, &e.UserName, &earned, &spent, &e.CurrentStreak, &e.LongestStreak, &e.QuestsDone); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.TotalEarned = earned
		e.TotalSpent = spent
		e.Balance = earned - spent
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}
