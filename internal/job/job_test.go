package job

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/gamify"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/push"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

type countingSender struct {
	sent int
}

func (c *countingSender) Configured() bool { return true }

func (c *countingSender) Send(sub *model.PushSubscription, payload push.Payload) error {
	c.sent++
	return nil
}

type jobFixture struct {
	runner        *Runner
	users         *store.UserStore
	tasks         *store.TaskStore
	streaks       *store.StreakStore
	badges        *store.BadgeStore
	notifications *store.NotificationStore
	dispatcher    *notify.Dispatcher
	sender        *countingSender
	parent        *model.User
	child         *model.User
}

func setupJobTest(t *testing.T) *jobFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	households := store.NewHouseholdStore(db)
	users := store.NewUserStore(db)
	tasks := store.NewTaskStore(db)
	streaks := store.NewStreakStore(db)
	badges := store.NewBadgeStore(db)
	notifications := store.NewNotificationStore(db)

	if _, err := households.Create("Shire"); err != nil {
		t.Fatalf("create household: %v", err)
	}
	parent, err := users.Create(1, "parent@shire.test", "Rosie", model.RoleParent, model.AgeBandNone)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := users.Create(1, "child@shire.test", "Elanor", model.RoleChild, model.AgeBandKid)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	engine := gamify.NewEngine(tasks, streaks, badges, logger)
	sender := &countingSender{}
	dispatcher := notify.NewDispatcher(notifications, sender, websocket.NewHub(logger), logger)
	dispatcher.SetSynchronous()

	runner := NewRunner(households, users, engine, dispatcher, logger)
	return &jobFixture{
		runner: runner, users: users, tasks: tasks, streaks: streaks,
		badges: badges, notifications: notifications, dispatcher: dispatcher,
		sender: sender, parent: parent, child: child,
	}
}

func approveTask(t *testing.T, f *jobFixture, title string) {
	t.Helper()
	task, err := f.tasks.Create(store.CreateTaskParams{
		HouseholdID:    1,
		AssignedTo:     f.child.ID,
		AssignedBy:     f.parent.ID,
		Title:          title,
		Category:       "cleaning",
		Points:         5,
		StreakEligible: true,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if ok, err := f.tasks.Submit(task.ID, ""); err != nil || !ok {
		t.Fatalf("submit task: ok=%v err=%v", ok, err)
	}
	if ok, err := f.tasks.Approve(task.ID, f.parent.ID); err != nil || !ok {
		t.Fatalf("approve task: ok=%v err=%v", ok, err)
	}
}

func TestRunRecomputeStreaks(t *testing.T) {
	f := setupJobTest(t)
	approveTask(t, f, "Sweep the porch")

	res := f.runner.Run(TypeRecomputeStreaks, Scope{HouseholdID: 1}, Params{})
	if !res.Success {
		t.Fatalf("job failed: %s", res.Err)
	}
	if res.Affected != 1 {
		t.Errorf("affected = %d, want 1 (only the child)", res.Affected)
	}

	streak, err := f.streaks.Get(f.child.ID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if streak.CurrentStreak != 1 {
		t.Errorf("current streak = %d, want 1", streak.CurrentStreak)
	}
}

func TestRunEvaluateBadges(t *testing.T) {
	f := setupJobTest(t)
	approveTask(t, f, "Sweep the porch")

	res := f.runner.Run(TypeEvaluateBadges, Scope{UserID: f.child.ID}, Params{})
	if !res.Success {
		t.Fatalf("job failed: %s", res.Err)
	}

	earned, err := f.badges.ListForUser(f.child.ID)
	if err != nil {
		t.Fatalf("list badges: %v", err)
	}
	if len(earned) == 0 {
		t.Error("expected at least the first-quest badge after evaluation")
	}
}

func TestRunScopeUnknownUser(t *testing.T) {
	f := setupJobTest(t)
	res := f.runner.Run(TypeRecomputeStreaks, Scope{UserID: 9999}, Params{})
	if res.Success {
		t.Error("job with unknown user should fail")
	}
}

func TestRunUnknownType(t *testing.T) {
	f := setupJobTest(t)
	res := f.runner.Run("prune_everything", Scope{}, Params{})
	if res.Success {
		t.Error("unknown job type should fail")
	}
}

func TestReplayWindowCap(t *testing.T) {
	f := setupJobTest(t)

	if _, err := f.notifications.CreateSubscription(f.child.ID, 1, "https://push.test/a", "p256dh", "auth", "tablet"); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := f.dispatcher.Dispatch(f.child.ID, 1, model.NotifQuestApproved, "Quest approved", "Sweep: +5"); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	f.sender.sent = 0

	// A window over the cap is rejected before any notification goes out.
	now := time.Now()
	res := f.runner.Run(TypeReplayNotifications, Scope{}, Params{From: now.Add(-8 * 24 * time.Hour), To: now})
	if res.Success {
		t.Error("over-cap window should be rejected")
	}
	if f.sender.sent != 0 {
		t.Errorf("rejected replay still sent %d pushes", f.sender.sent)
	}

	res = f.runner.Run(TypeReplayNotifications, Scope{}, Params{From: now.Add(-24 * time.Hour), To: now.Add(time.Minute)})
	if !res.Success {
		t.Fatalf("valid replay failed: %s", res.Err)
	}
	if res.Affected != 1 {
		t.Errorf("affected = %d, want 1", res.Affected)
	}
	if f.sender.sent != 1 {
		t.Errorf("replay sent %d pushes, want 1", f.sender.sent)
	}
}

func TestReplayWindowValidation(t *testing.T) {
	f := setupJobTest(t)
	now := time.Now()

	res := f.runner.Run(TypeReplayNotifications, Scope{}, Params{From: now, To: now.Add(-time.Hour)})
	if res.Success {
		t.Error("inverted window should be rejected")
	}

	res = f.runner.Run(TypeReplayNotifications, Scope{}, Params{})
	if res.Success {
		t.Error("missing window should be rejected")
	}
}
