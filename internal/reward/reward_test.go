package reward

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

type rewardFixture struct {
	svc     *Service
	rewards *store.RewardStore
	tasks   *store.TaskStore
	parent  auth.AuthContext
	child   auth.AuthContext
	childID int64
}

func setupRewardTest(t *testing.T) *rewardFixture {
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
	rewards := store.NewRewardStore(db)
	notifications := store.NewNotificationStore(db)
	audits := store.NewAuditStore(db)

	if _, err := households.Create("Shire"); err != nil {
		t.Fatalf("create household: %v", err)
	}
	parent, err := users.Create(1, "rosie@shire.test", "Rosie", model.RoleParent, model.AgeBandNone)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := users.Create(1, "elanor@shire.test", "Elanor", model.RoleChild, model.AgeBandKid)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	dispatcher := notify.NewDispatcher(notifications, nil, nil, logger)
	dispatcher.SetSynchronous()
	recorder := audit.NewRecorder(audits, logger)

	svc := NewService(rewards, users, dispatcher, recorder, websocket.NewHub(logger), logger)
	return &rewardFixture{
		svc:     svc,
		rewards: rewards,
		tasks:   tasks,
		parent:  auth.AuthContext{UserID: parent.ID, HouseholdID: 1, Email: parent.Email, Role: model.RoleParent},
		child:   auth.AuthContext{UserID: child.ID, HouseholdID: 1, Email: child.Email, Role: model.RoleChild},
		childID: child.ID,
	}
}

// earn credits the child with points by running a quest through approval.
func (f *rewardFixture) earn(t *testing.T, points int) {
	t.Helper()
	task, err := f.tasks.Create(store.CreateTaskParams{
		HouseholdID: 1,
		AssignedTo:  f.childID,
		AssignedBy:  f.parent.UserID,
		Title:       "Rake leaves",
		Points:      points,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if ok, err := f.tasks.Submit(task.ID, ""); err != nil || !ok {
		t.Fatalf("submit task: ok=%v err=%v", ok, err)
	}
	if ok, err := f.tasks.Approve(task.ID, f.parent.UserID); err != nil || !ok {
		t.Fatalf("approve task: ok=%v err=%v", ok, err)
	}
}

func (f *rewardFixture) balance(t *testing.T) int {
	t.Helper()
	b, err := f.rewards.GetPointBalance(f.childID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b.Balance
}

func TestCreateRewardValidation(t *testing.T) {
	f := setupRewardTest(t)

	if _, err := f.svc.CreateReward(f.child, "Ice cream", "", 10, true); core.KindOf(err) != core.KindUnauthorized {
		t.Errorf("child creating reward: got %v, want unauthorized", err)
	}
	if _, err := f.svc.CreateReward(f.parent, "", "", 10, true); core.KindOf(err) != core.KindValidation {
		t.Errorf("empty title: got %v, want validation", err)
	}
	if _, err := f.svc.CreateReward(f.parent, "Ice cream", "", 0, true); core.KindOf(err) != core.KindValidation {
		t.Errorf("zero cost: got %v, want validation", err)
	}
}

func TestRequestInsufficientPoints(t *testing.T) {
	f := setupRewardTest(t)
	reward, err := f.svc.CreateReward(f.parent, "Movie night", "", 20, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	f.earn(t, 10)

	_, err = f.svc.Request(f.child, reward.ID)
	if core.KindOf(err) != core.KindInsufficientPoints {
		t.Errorf("got %v, want insufficient_points", err)
	}
}

func TestRequestExactBalanceBoundary(t *testing.T) {
	f := setupRewardTest(t)
	reward, err := f.svc.CreateReward(f.parent, "Movie night", "", 20, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	f.earn(t, 20)

	redemption, err := f.svc.Request(f.child, reward.ID)
	if err != nil {
		t.Fatalf("request with balance == cost should succeed: %v", err)
	}
	if redemption.Status != model.RedemptionRequested {
		t.Errorf("status = %q, want requested", redemption.Status)
	}
	if got := f.balance(t); got != 20 {
		t.Errorf("balance after request = %d, want 20 (debit happens at approval)", got)
	}
}

func TestApproveDebitsOnce(t *testing.T) {
	f := setupRewardTest(t)
	reward, err := f.svc.CreateReward(f.parent, "Movie night", "", 20, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	f.earn(t, 30)

	redemption, err := f.svc.Request(f.child, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if _, err := f.svc.Approve(f.child, redemption.ID); core.KindOf(err) != core.KindUnauthorized {
		t.Errorf("child approving: got %v, want unauthorized", err)
	}

	approved, err := f.svc.Approve(f.parent, redemption.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.RedemptionApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if got := f.balance(t); got != 10 {
		t.Fatalf("balance after approval = %d, want 10", got)
	}

	// Re-approving changes nothing.
	if _, err := f.svc.Approve(f.parent, redemption.ID); err != nil {
		t.Fatalf("second approve should be a no-op, got %v", err)
	}
	if got := f.balance(t); got != 10 {
		t.Errorf("balance after second approval = %d, want 10 (no double debit)", got)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	f := setupRewardTest(t)
	reward, err := f.svc.CreateReward(f.parent, "Movie night", "", 20, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	f.earn(t, 20)

	redemption, err := f.svc.Request(f.child, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	rejected, err := f.svc.Reject(f.parent, redemption.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.RedemptionRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if got := f.balance(t); got != 20 {
		t.Errorf("rejection moved points: balance = %d, want 20", got)
	}

	if _, err := f.svc.Approve(f.parent, redemption.ID); core.KindOf(err) != core.KindInvalidState {
		t.Errorf("approve after reject: got %v, want invalid_state", err)
	}
	if _, err := f.svc.Fulfill(f.parent, redemption.ID); core.KindOf(err) != core.KindInvalidState {
		t.Errorf("fulfill after reject: got %v, want invalid_state", err)
	}
}

func TestFulfillOnlyFromApproved(t *testing.T) {
	f := setupRewardTest(t)
	reward, err := f.svc.CreateReward(f.parent, "Movie night", "", 20, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	f.earn(t, 20)

	redemption, err := f.svc.Request(f.child, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Fulfill(f.parent, redemption.ID); core.KindOf(err) != core.KindInvalidState {
		t.Errorf("fulfill from requested: got %v, want invalid_state", err)
	}

	if _, err := f.svc.Approve(f.parent, redemption.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	fulfilled, err := f.svc.Fulfill(f.parent, redemption.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != model.RedemptionFulfilled {
		t.Errorf("status = %q, want fulfilled", fulfilled.Status)
	}
	if got := f.balance(t); got != 0 {
		t.Errorf("fulfillment changed the debit: balance = %d, want 0", got)
	}
}

func TestRequestInactiveReward(t *testing.T) {
	f := setupRewardTest(t)
	reward, err := f.svc.CreateReward(f.parent, "Retired treat", "", 5, false)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	f.earn(t, 10)

	if _, err := f.svc.Request(f.child, reward.ID); core.KindOf(err) != core.KindNotFound {
		t.Errorf("requesting inactive reward: got %v, want not found", err)
	}
}
