package adminacl

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/database"
	"github.com/mosshollow/questwick/internal/store"
)

func setupACLTest(t *testing.T, allowlist ...string) (*Service, *store.AdminStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admins := store.NewAdminStore(db)
	recorder := audit.NewRecorder(store.NewAuditStore(db), logger)
	return NewService(admins, allowlist, recorder, logger), admins
}

func actor(email string, admin bool) auth.AuthContext {
	return auth.AuthContext{UserID: 1, HouseholdID: 1, Email: email, Admin: admin}
}

func TestParseAllowlist(t *testing.T) {
	got := ParseAllowlist(" a@x.test, b@x.test ,,c@x.test")
	if len(got) != 3 || got[0] != "a@x.test" || got[2] != "c@x.test" {
		t.Errorf("ParseAllowlist = %v", got)
	}
	if got := ParseAllowlist(""); got != nil {
		t.Errorf("empty allowlist = %v, want nil", got)
	}
}

func TestBootstrapEligibility(t *testing.T) {
	svc, _ := setupACLTest(t, "root@x.test")

	// Allowlisted and empty set: eligible.
	ok, err := svc.CheckBootstrapEligibility("root@x.test")
	if err != nil || !ok {
		t.Errorf("eligible candidate: ok=%v err=%v", ok, err)
	}

	// Not allowlisted: never eligible, regardless of count.
	ok, err = svc.CheckBootstrapEligibility("intruder@x.test")
	if err != nil || ok {
		t.Errorf("non-allowlisted candidate: ok=%v err=%v", ok, err)
	}

	// Once an admin exists, nobody is bootstrap-eligible, allowlist or not.
	if err := svc.Bootstrap(actor("root@x.test", false)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	ok, err = svc.CheckBootstrapEligibility("root@x.test")
	if err != nil || ok {
		t.Errorf("after bootstrap: ok=%v err=%v", ok, err)
	}
}

func TestBootstrapOnlyFirstWins(t *testing.T) {
	svc, admins := setupACLTest(t, "first@x.test", "second@x.test")

	if err := svc.Bootstrap(actor("first@x.test", false)); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	err := svc.Bootstrap(actor("second@x.test", false))
	if core.KindOf(err) != core.KindBootstrapDenied {
		t.Errorf("second bootstrap: got %v, want bootstrap_not_allowed", err)
	}

	count, err := admins.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("admin count = %d, want 1", count)
	}
}

func TestBootstrapRequiresAllowlist(t *testing.T) {
	svc, _ := setupACLTest(t, "root@x.test")
	err := svc.Bootstrap(actor("intruder@x.test", false))
	if core.KindOf(err) != core.KindBootstrapDenied {
		t.Errorf("got %v, want bootstrap_not_allowed", err)
	}
}

func TestPromote(t *testing.T) {
	svc, admins := setupACLTest(t, "root@x.test", "helper@x.test")
	if err := svc.Bootstrap(actor("root@x.test", false)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	root := actor("root@x.test", true)

	if err := svc.Promote(actor("helper@x.test", false), "helper@x.test"); core.KindOf(err) != core.KindUnauthorized {
		t.Errorf("non-admin promoting: got %v, want unauthorized", err)
	}
	if err := svc.Promote(root, "intruder@x.test"); core.KindOf(err) != core.KindValidation {
		t.Errorf("promoting off-allowlist target: got %v, want validation", err)
	}

	if err := svc.Promote(root, "helper@x.test"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	// Promoting an existing admin changes nothing.
	if err := svc.Promote(root, "helper@x.test"); err != nil {
		t.Fatalf("repeat promote: %v", err)
	}

	count, err := admins.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("admin count = %d, want 2", count)
	}
}

func TestDemoteLastAdminRefused(t *testing.T) {
	svc, _ := setupACLTest(t, "root@x.test")
	if err := svc.Bootstrap(actor("root@x.test", false)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	root := actor("root@x.test", true)

	err := svc.Demote(root, "root@x.test")
	if core.KindOf(err) != core.KindLastAdmin {
		t.Errorf("demoting the only admin: got %v, want last_admin", err)
	}
}

func TestDemoteWithTwoAdmins(t *testing.T) {
	svc, admins := setupACLTest(t, "root@x.test", "helper@x.test")
	if err := svc.Bootstrap(actor("root@x.test", false)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	root := actor("root@x.test", true)
	if err := svc.Promote(root, "helper@x.test"); err != nil {
		t.Fatalf("promote: %v", err)
	}

	if err := svc.Demote(root, "helper@x.test"); err != nil {
		t.Fatalf("demote with two admins: %v", err)
	}
	count, err := admins.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("admin count = %d, want 1", count)
	}

	// The survivor is now the last admin and protected.
	if err := svc.Demote(root, "root@x.test"); core.KindOf(err) != core.KindLastAdmin {
		t.Errorf("demoting survivor: got %v, want last_admin", err)
	}
}

func TestDemoteUnknownTarget(t *testing.T) {
	svc, _ := setupACLTest(t, "root@x.test")
	if err := svc.Bootstrap(actor("root@x.test", false)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	root := actor("root@x.test", true)

	if err := svc.Demote(root, "ghost@x.test"); core.KindOf(err) != core.KindNotFound {
		t.Errorf("demoting non-admin: got %v, want not_found", err)
	}
	if err := svc.Demote(actor("helper@x.test", false), "root@x.test"); core.KindOf(err) != core.KindUnauthorized {
		t.Errorf("non-admin demoting: got %v, want unauthorized", err)
	}
}
