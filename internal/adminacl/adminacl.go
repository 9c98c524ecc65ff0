package adminacl

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// Service governs admin privilege. The count guards live inside single
// conditional SQL statements at the store layer, so two racing bootstraps
// or two racing demotions cannot both win.
type Service struct {
	admins    *store.AdminStore
	allowlist map[string]bool
	recorder  *audit.Recorder
	logger    *slog.Logger
}

// NewService builds the service. allowlist is the set of emails permitted
// to hold admin privilege, usually parsed from configuration.
func NewService(admins *store.AdminStore, allowlist []string, recorder *audit.Recorder, logger *slog.Logger) *Service {
	set := make(map[string]bool, len(allowlist))
	for _, email := range allowlist {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = true
		}
	}
	return &Service{admins: admins, allowlist: set, recorder: recorder, logger: logger}
}

// ParseAllowlist splits a comma-separated allowlist value.
func ParseAllowlist(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Service) allowed(email string) bool {
	return s.allowlist[strings.ToLower(email)]
}

// CheckBootstrapEligibility reports whether a candidate could bootstrap
// right now: no admins exist and the candidate is allowlisted. The answer
// is advisory; Bootstrap re-checks at write time.
func (s *Service) CheckBootstrapEligibility(email string) (bool, error) {
	if !s.allowed(email) {
		return false, nil
	}
	count, err := s.admins.Count()
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count == 0, nil
}

// Bootstrap promotes the first admin. The empty-set check and the insert
// are one conditional statement: when two eligible users race, exactly one
// wins and the other gets BootstrapNotAllowed.
func (s *Service) Bootstrap(actor auth.AuthContext) error {
	if !s.allowed(actor.Email) {
		return core.BootstrapDenied("identity is not on the admin allowlist")
	}

	won, err := s.admins.PromoteBootstrap(actor.Email)
	if err != nil {
		return fmt.Errorf("bootstrap promote: %w", err)
	}
	if !won {
		return core.BootstrapDenied("an admin already exists")
	}

	return s.record(actor, "admin.bootstrap", actor.Email)
}

// Promote grants admin privilege to an allowlisted target. Promoting an
// existing admin is a no-op.
func (s *Service) Promote(actor auth.AuthContext, targetEmail string) error {
	if !actor.Admin {
		return core.Unauthorized("only admins can promote")
	}
	if !s.allowed(targetEmail) {
		return core.Validation("target is not on the admin allowlist")
	}

	created, err := s.admins.Promote(targetEmail, actor.Email)
	if err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	if !created {
		return nil
	}

	return s.record(actor, "admin.promote", targetEmail)
}

// Demote revokes admin privilege. The count guard is folded into the
// delete statement: the last remaining admin can never be removed, even
// under concurrent demotions.
func (s *Service) Demote(actor auth.AuthContext, targetEmail string) error {
	if !actor.Admin {
		return core.Unauthorized("only admins can demote")
	}

	removed, err := s.admins.Demote(targetEmail)
	if err != nil {
		return fmt.Errorf("demote: %w", err)
	}
	if !removed {
		isAdmin, err := s.admins.IsAdmin(targetEmail)
		if err != nil {
			return fmt.Errorf("check admin: %w", err)
		}
		if !isAdmin {
			return core.NotFound("admin claim")
		}
		return core.LastAdmin()
	}

	return s.record(actor, "admin.demote", targetEmail)
}

// List returns all admin claims.
func (s *Service) List(actor auth.AuthContext) ([]model.AdminClaim, error) {
	if !actor.Admin {
		return nil, core.Unauthorized("only admins can list admins")
	}
	return s.admins.List()
}

// record appends the audit entry for a privilege change. Unlike domain
// workflows, a failed audit write here is returned to the caller: the
// privilege change stands, but the failure must not be swallowed.
func (s *Service) record(actor auth.AuthContext, action, targetEmail string) error {
	if s.recorder == nil {
		return nil
	}
	err := s.recorder.Record(actor.UserID, actor.Email, action, "admin_claim", 0,
		nil, map[string]string{"email": targetEmail})
	if err != nil {
		return fmt.Errorf("privilege change applied but audit write failed: %w", err)
	}
	return nil
}
