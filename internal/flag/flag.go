package flag

import (
	"fmt"

	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// Service resolves feature flags with most-specific-scope-wins precedence:
// a user-scoped flag beats a household-scoped one, which beats a global one.
type Service struct {
	flags *store.FlagStore
}

func NewService(flags *store.FlagStore) *Service {
	return &Service{flags: flags}
}

// Lookup returns the effective flag for a caller, or nil if no scope
// defines it. userID and householdID of 0 skip that scope.
func (s *Service) Lookup(key string, userID, householdID int64) (*model.FeatureFlag, error) {
	if userID != 0 {
		f, err := s.flags.Get(model.FlagScopeUser, userID, key)
		if err != nil {
			return nil, fmt.Errorf("lookup user flag: %w", err)
		}
		if f != nil {
			return f, nil
		}
	}

	if householdID != 0 {
		f, err := s.flags.Get(model.FlagScopeHousehold, householdID, key)
		if err != nil {
			return nil, fmt.Errorf("lookup household flag: %w", err)
		}
		if f != nil {
			return f, nil
		}
	}

	f, err := s.flags.Get(model.FlagScopeGlobal, 0, key)
	if err != nil {
		return nil, fmt.Errorf("lookup global flag: %w", err)
	}
	return f, nil
}

// Enabled is Lookup collapsed to a boolean, with a default for unset flags.
func (s *Service) Enabled(key string, userID, householdID int64, fallback bool) bool {
	f, err := s.Lookup(key, userID, householdID)
	if err != nil || f == nil {
		return fallback
	}
	return f.Enabled
}
