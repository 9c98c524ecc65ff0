package job

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mosshollow/questwick/internal/gamify"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/store"
)

// Job types accepted by Run.
const (
	TypeRecomputeStreaks    = "recompute_streaks"
	TypeEvaluateBadges      = "evaluate_badges"
	TypeReplayNotifications = "replay_notifications"
)

// maxReplayWindow caps how far back a notification replay may reach.
const maxReplayWindow = 7 * 24 * time.Hour

// Scope narrows a job to one user or one household. Zero values mean all.
type Scope struct {
	HouseholdID int64
	UserID      int64
}

// Params carries job-specific arguments. From/To are only used by
// replay_notifications.
type Params struct {
	From time.Time
	To   time.Time
}

// Result reports what a job did. Err is a message rather than an error so
// the result serializes cleanly into the admin response.
type Result struct {
	Success  bool   `json:"success"`
	Affected int    `json:"affected"`
	Err      string `json:"error,omitempty"`
}

// Runner executes maintenance jobs on behalf of admins.
type Runner struct {
	households *store.HouseholdStore
	users      *store.UserStore
	engine     *gamify.Engine
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

func NewRunner(households *store.HouseholdStore, users *store.UserStore, engine *gamify.Engine, dispatcher *notify.Dispatcher, logger *slog.Logger) *Runner {
	return &Runner{
		households: households,
		users:      users,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run executes one job synchronously and returns its result. Validation
// failures come back as a failed Result before any side effects happen.
func (r *Runner) Run(jobType string, scope Scope, params Params) Result {
	start := time.Now()
	var res Result

	switch jobType {
	case TypeRecomputeStreaks:
		res = r.forEachChild(scope, func(userID int64) error {
			_, err := r.engine.RecomputeStreak(userID)
			return err
		})
	case TypeEvaluateBadges:
		res = r.forEachChild(scope, func(userID int64) error {
			_, err := r.engine.EvaluateBadges(userID)
			return err
		})
	case TypeReplayNotifications:
		res = r.replay(params)
	default:
		res = failed(fmt.Sprintf("unknown job type %q", jobType))
	}

	r.logger.Info("job finished",
		"type", jobType, "success", res.Success, "affected", res.Affected,
		"duration", time.Since(start), "error", res.Err)
	return res
}

// forEachChild applies fn to every child user inside the scope. It keeps
// going on per-user errors and reports the first one at the end.
func (r *Runner) forEachChild(scope Scope, fn func(userID int64) error) Result {
	userIDs, err := r.resolveChildren(scope)
	if err != nil {
		return failed(err.Error())
	}

	affected := 0
	var firstErr error
	for _, id := range userIDs {
		if err := fn(id); err != nil {
			r.logger.Warn("job step failed", "user_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		affected++
	}

	res := Result{Success: firstErr == nil, Affected: affected}
	if firstErr != nil {
		res.Err = firstErr.Error()
	}
	return res
}

func (r *Runner) resolveChildren(scope Scope) ([]int64, error) {
	if scope.UserID != 0 {
		u, err := r.users.GetByID(scope.UserID)
		if err != nil {
			return nil, fmt.Errorf("load user %d: %w", scope.UserID, err)
		}
		if u == nil {
			return nil, fmt.Errorf("user %d not found", scope.UserID)
		}
		return []int64{u.ID}, nil
	}

	var householdIDs []int64
	if scope.HouseholdID != 0 {
		householdIDs = []int64{scope.HouseholdID}
	} else {
		households, err := r.households.ListActive()
		if err != nil {
			return nil, fmt.Errorf("list households: %w", err)
		}
		for _, h := range households {
			householdIDs = append(householdIDs, h.ID)
		}
	}

	var userIDs []int64
	for _, hid := range householdIDs {
		users, err := r.users.ListByHousehold(hid)
		if err != nil {
			return nil, fmt.Errorf("list users for household %d: %w", hid, err)
		}
		for _, u := range users {
			if u.Role == model.RoleChild && u.Status == model.UserStatusActive {
				userIDs = append(userIDs, u.ID)
			}
		}
	}
	return userIDs, nil
}

// replay validates the window before touching anything. An over-cap window
// is rejected outright rather than clamped.
func (r *Runner) replay(params Params) Result {
	if params.From.IsZero() || params.To.IsZero() {
		return failed("replay window requires both from and to")
	}
	if !params.To.After(params.From) {
		return failed("replay window end must be after start")
	}
	if params.To.Sub(params.From) > maxReplayWindow {
		return failed(fmt.Sprintf("replay window exceeds %s cap", maxReplayWindow))
	}

	count, err := r.dispatcher.Replay(params.From, params.To)
	if err != nil {
		return failed(err.Error())
	}
	return Result{Success: true, Affected: count}
}

func failed(msg string) Result {
	return Result{Success: false, Err: msg}
}
