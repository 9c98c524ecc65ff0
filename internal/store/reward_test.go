package store

import (
	"testing"

	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/model"
)

func setupRewardTestDB(t *testing.T) (*RewardStore, *TaskStore, *UserStore, *HouseholdStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRewardStore(db), NewTaskStore(db), NewUserStore(db), NewHouseholdStore(db)
}

func earnPoints(t *testing.T, ts *TaskStore, h *model.Household, parent, child *model.User, points int) {
	t.Helper()
	task, err := ts.Create(CreateTaskParams{
		HouseholdID: h.ID, AssignedTo: child.ID, AssignedBy: parent.ID,
		Title: "Earn", Points: points, StreakEligible: true,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	ts.Submit(task.ID, "")
	ts.Approve(task.ID, parent.ID)
}

func TestPointBalanceDerivedFromHistory(t *testing.T) {
	rs, ts, us, hs := setupRewardTestDB(t)
	h, _ := hs.Create("The Burrow")
	parent, _ := us.Create(h.ID, "p@example.com", "P", model.RoleParent, "")
	child, _ := us.Create(h.ID, "c@example.com", "C", model.RoleChild, model.AgeBandKid)

	earnPoints(t, ts, h, parent, child, 30)
	earnPoints(t, ts, h, parent, child, 20)

	balance, err := rs.GetPointBalance(child.ID)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.TotalEarned != 50 {
		t.Errorf("earned = %d, want 50", balance.TotalEarned)
	}
	if balance.Balance != 50 {
		t.Errorf("balance = %d, want 50", balance.Balance)
	}
}

func TestRedemptionDebitsOnApprovalOnly(t *testing.T) {
	rs, ts, us, hs := setupRewardTestDB(t)
	h, _ := hs.Create("The Burrow")
	parent, _ := us.Create(h.ID, "p@example.com", "P", model.RoleParent, "")
	child, _ := us.Create(h.ID, "c@example.com", "C", model.RoleChild, model.AgeBandKid)
	earnPoints(t, ts, h, parent, child, 50)

	reward, _ := rs.Create(h.ID, "Movie Night", "", 30, true)
	red, err := rs.CreateRedemption(reward.ID, h.ID, child.ID, reward.PointCost)
	if err != nil {
		t.Fatalf("create redemption: %v", err)
	}
	if red.Status != model.RedemptionRequested {
		t.Errorf("status = %q, want requested", red.Status)
	}

	// Requesting debits nothing.
	balance, _ := rs.GetPointBalance(child.ID)
	if balance.Balance != 50 {
		t.Errorf("balance after request = %d, want 50", balance.Balance)
	}

	ok, err := rs.Decide(red.ID, parent.ID, model.RedemptionApproved)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !ok {
		t.Fatal("first decision should succeed")
	}

	balance, _ = rs.GetPointBalance(child.ID)
	if balance.Balance != 20 {
		t.Errorf("balance after approval = %d, want 20", balance.Balance)
	}

	// A racing second approval changes nothing, so no double debit.
	ok, _ = rs.Decide(red.ID, parent.ID, model.RedemptionApproved)
	if ok {
		t.Error("second decision should not change the row")
	}
	balance, _ = rs.GetPointBalance(child.ID)
	if balance.Balance != 20 {
		t.Errorf("balance after repeat approval = %d, want 20", balance.Balance)
	}
}

func TestRejectedRedemptionMovesNoPoints(t *testing.T) {
	rs, ts, us, hs := setupRewardTestDB(t)
	h, _ := hs.Create("The Burrow")
	parent, _ := us.Create(h.ID, "p@example.com", "P", model.RoleParent, "")
	child, _ := us.Create(h.ID, "c@example.com", "C", model.RoleChild, model.AgeBandKid)
	earnPoints(t, ts, h, parent, child, 50)

	reward, _ := rs.Create(h.ID, "Ice Cream", "", 25, true)
	red, _ := rs.CreateRedemption(reward.ID, h.ID, child.ID, reward.PointCost)
	rs.Decide(red.ID, parent.ID, model.RedemptionRejected)

	balance, _ := rs.GetPointBalance(child.ID)
	if balance.Balance != 50 {
		t.Errorf("balance after rejection = %d, want 50", balance.Balance)
	}

	got, _ := rs.GetRedemption(red.ID)
	if got.Status != model.RedemptionRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}

	// Rejected is terminal.
	ok, _ := rs.Fulfill(red.ID)
	if ok {
		t.Error("fulfill after rejection should not change the row")
	}
}

func TestFulfillOnlyFromApproved(t *testing.T) {
	rs, ts, us, hs := setupRewardTestDB(t)
	h, _ := hs.Create("The Burrow")
	parent, _ := us.Create(h.ID, "p@example.com", "P", model.RoleParent, "")
	child, _ := us.Create(h.ID, "c@example.com", "C", model.RoleChild, model.AgeBandKid)
	earnPoints(t, ts, h, parent, child, 50)

	reward, _ := rs.Create(h.ID, "Park Trip", "", 10, true)
	red, _ := rs.CreateRedemption(reward.ID, h.ID, child.ID, reward.PointCost)

	ok, _ := rs.Fulfill(red.ID)
	if ok {
		t.Error("fulfill from requested should fail")
	}

	rs.Decide(red.ID, parent.ID, model.RedemptionApproved)
	ok, err := rs.Fulfill(red.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if !ok {
		t.Fatal("fulfill from approved should succeed")
	}

	got, _ := rs.GetRedemption(red.ID)
	if got.Status != model.RedemptionFulfilled {
		t.Errorf("status = %q, want fulfilled", got.Status)
	}
	if got.FulfilledAt == nil {
		t.Error("fulfilled_at should be set")
	}
}

func TestLeaderboardOrderedByBalance(t *testing.T) {
	rs, ts, us, hs := setupRewardTestDB(t)
	h, _ := hs.Create("The Burrow")
	parent, _ := us.Create(h.ID, "p@example.com", "P", model.RoleParent, "")
	c1, _ := us.Create(h.ID, "c1@example.com", "Fred", model.RoleChild, model.AgeBandKid)
	c2, _ := us.Create(h.ID, "c2@example.com", "George", model.RoleChild, model.AgeBandKid)

	earnPoints(t, ts, h, parent, c1, 10)
	earnPoints(t, ts, h, parent, c2, 40)

	entries, err := rs.Leaderboard(h.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].UserName != "George" {
		t.Errorf("top entry = %q, want George", entries[0].UserName)
	}
	if entries[0].Balance != 40 {
		t.Errorf("top balance = %d, want 40", entries[0].Balance)
	}

	// Spending changes the order; rank follows net balance, not earnings.
	reward, _ := rs.Create(h.ID, "Broom Kit", "", 35, true)
	red, _ := rs.CreateRedemption(reward.ID, h.ID, c2.ID, reward.PointCost)
	rs.Decide(red.ID, parent.ID, model.RedemptionApproved)

	entries, err = rs.Leaderboard(h.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if entries[0].UserName != "Fred" || entries[0].Balance != 10 {
		t.Errorf("top entry = %q (%d), want Fred (10)", entries[0].UserName, entries[0].Balance)
	}
	if entries[1].Balance != 5 {
		t.Errorf("second balance = %d, want 5", entries[1].Balance)
	}
}
