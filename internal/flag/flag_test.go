package flag

import (
	"testing"

	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

func setupFlagService(t *testing.T) (*Service, *store.FlagStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fs := store.NewFlagStore(db)
	return NewService(fs), fs
}

func TestLookupMostSpecificScopeWins(t *testing.T) {
	svc, fs := setupFlagService(t)

	fs.Set(model.FlagScopeGlobal, 0, "friend_requests", true, "")
	fs.Set(model.FlagScopeHousehold, 5, "friend_requests", false, "")
	fs.Set(model.FlagScopeUser, 9, "friend_requests", true, `{"max":1}`)

	// User scope beats household and global.
	f, err := svc.Lookup("friend_requests", 9, 5)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if f.ScopeType != model.FlagScopeUser {
		t.Errorf("scope = %q, want user", f.ScopeType)
	}

	// No user flag: household beats global.
	f, _ = svc.Lookup("friend_requests", 2, 5)
	if f.ScopeType != model.FlagScopeHousehold {
		t.Errorf("scope = %q, want household", f.ScopeType)
	}
	if f.Enabled {
		t.Error("household flag should be disabled")
	}

	// Neither user nor household: global.
	f, _ = svc.Lookup("friend_requests", 2, 3)
	if f.ScopeType != model.FlagScopeGlobal {
		t.Errorf("scope = %q, want global", f.ScopeType)
	}
}

func TestLookupUnsetReturnsNil(t *testing.T) {
	svc, _ := setupFlagService(t)

	f, err := svc.Lookup("nope", 1, 2)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if f != nil {
		t.Error("expected nil for unset flag")
	}
}

func TestEnabledFallback(t *testing.T) {
	svc, fs := setupFlagService(t)

	if !svc.Enabled("unset", 1, 2, true) {
		t.Error("unset flag should return fallback true")
	}
	if svc.Enabled("unset", 1, 2, false) {
		t.Error("unset flag should return fallback false")
	}

	fs.Set(model.FlagScopeGlobal, 0, "set", false, "")
	if svc.Enabled("set", 1, 2, true) {
		t.Error("set flag should override fallback")
	}
}
