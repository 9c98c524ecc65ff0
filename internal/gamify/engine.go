package gamify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// Engine recomputes streaks and evaluates badge awards. Both operations are
// idempotent: streaks are a pure function of task history and badge awards
// are unique per (user, badge), so running the engine twice on unchanged
// history changes nothing.
type Engine struct {
	tasks   *store.TaskStore
	streaks *store.StreakStore
	badges  *store.BadgeStore
	now     func() time.Time
	logger  *slog.Logger
}

func NewEngine(tasks *store.TaskStore, streaks *store.StreakStore, badges *store.BadgeStore, logger *slog.Logger) *Engine {
	return &Engine{
		tasks:   tasks,
		streaks: streaks,
		badges:  badges,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock overrides the time source, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// RecomputeStreak rebuilds the streak counters for a user from full task
// history and stores the result. The cached row is never trusted as input.
func (e *Engine) RecomputeStreak(userID int64) (*model.Streak, error) {
	dates, err := e.tasks.ApprovedStreakDates(userID)
	if err != nil {
		return nil, fmt.Errorf("load streak dates: %w", err)
	}

	current, longest := ComputeStreak(dates, e.now())
	if err := e.streaks.Upsert(userID, current, longest); err != nil {
		return nil, fmt.Errorf("store streak: %w", err)
	}

	return &model.Streak{UserID: userID, CurrentStreak: current, LongestStreak: longest}, nil
}

// EvaluateBadges awards every active badge whose criteria the user now
// satisfies and does not already hold. Returns the newly awarded badges.
// Qualifying badges are awarded regardless of evaluation order.
func (e *Engine) EvaluateBadges(userID int64) ([]model.Badge, error) {
	badges, err := e.badges.ListActive()
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}

	streak, err := e.streaks.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}

	totalApproved, err := e.tasks.CountApproved(userID, "")
	if err != nil {
		return nil, fmt.Errorf("count approved: %w", err)
	}

	var awarded []model.Badge
	for _, b := range badges {
		satisfied, err := e.satisfies(userID, b, totalApproved, streak)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			continue
		}

		created, err := e.badges.Award(userID, b.ID)
		if err != nil {
			return nil, fmt.Errorf("award badge %q: %w", b.Key, err)
		}
		if created {
			e.logger.Info("badge awarded", "user_id", userID, "badge", b.Key)
			awarded = append(awarded, b)
		}
	}
	return awarded, nil
}

func (e *Engine) satisfies(userID int64, b model.Badge, totalApproved int, streak *model.Streak) (bool, error) {
	switch b.CriteriaKind {
	case model.CriteriaQuestsCompleted:
		return totalApproved >= b.Threshold, nil
	case model.CriteriaStreakDays:
		return streak.CurrentStreak >= b.Threshold || streak.LongestStreak >= b.Threshold, nil
	case model.CriteriaCategoryCount:
		count, err := e.tasks.CountApproved(userID, b.Category)
		if err != nil {
			return false, fmt.Errorf("count approved in %q: %w", b.Category, err)
		}
		return count >= b.Threshold, nil
	default:
		e.logger.Warn("unknown badge criteria", "badge", b.Key, "kind", b.CriteriaKind)
		return false, nil
	}
}

// OnQuestApproved runs the post-approval pipeline: refresh the streak, then
// sweep badges against the new stats.
func (e *Engine) OnQuestApproved(userID int64) ([]model.Badge, error) {
	if _, err := e.RecomputeStreak(userID); err != nil {
		return nil, err
	}
	return e.EvaluateBadges(userID)
}
