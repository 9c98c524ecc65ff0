package reward

import (
	"fmt"
	"log/slog"

	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

// Service runs the reward catalog and the redemption workflow. The balance
// check happens at request time; the debit happens exactly once, at
// approval, because the balance is derived from approved redemptions.
type Service struct {
	rewards    *store.RewardStore
	users      *store.UserStore
	dispatcher *notify.Dispatcher
	recorder   *audit.Recorder
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewService(rewards *store.RewardStore, users *store.UserStore, dispatcher *notify.Dispatcher, recorder *audit.Recorder, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		rewards:    rewards,
		users:      users,
		dispatcher: dispatcher,
		recorder:   recorder,
		hub:        hub,
		logger:     logger,
	}
}

// CreateReward adds a catalog entry to the caller's household.
func (s *Service) CreateReward(actor auth.AuthContext, title, description string, pointCost int, active bool) (*model.Reward, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can manage the reward catalog")
	}
	if title == "" {
		return nil, core.Validation("title is required")
	}
	if pointCost <= 0 {
		return nil, core.Validation("point cost must be greater than zero")
	}
	r, err := s.rewards.Create(actor.HouseholdID, title, description, pointCost, active)
	if err != nil {
		return nil, fmt.Errorf("create reward: %w", err)
	}
	s.record(actor, "reward.create", r.ID, nil, r)
	return r, nil
}

// UpdateReward edits a catalog entry.
func (s *Service) UpdateReward(actor auth.AuthContext, id int64, title, description string, pointCost int, active bool) (*model.Reward, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can manage the reward catalog")
	}
	existing, err := s.rewards.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("load reward: %w", err)
	}
	if existing == nil || existing.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("reward")
	}
	if pointCost <= 0 {
		return nil, core.Validation("point cost must be greater than zero")
	}
	updated, err := s.rewards.Update(id, title, description, pointCost, active)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	s.record(actor, "reward.update", id, existing, updated)
	return updated, nil
}

// ListRewards returns the household catalog.
func (s *Service) ListRewards(actor auth.AuthContext) ([]model.Reward, error) {
	return s.rewards.List(actor.HouseholdID)
}

// Request creates a redemption if the child can afford the reward right
// now. A balance exactly equal to the cost is enough.
func (s *Service) Request(actor auth.AuthContext, rewardID int64) (*model.RewardRedemption, error) {
	if actor.Role != model.RoleChild {
		return nil, core.Unauthorized("only children can request redemptions")
	}

	reward, err := s.rewards.GetByID(rewardID)
	if err != nil {
		return nil, fmt.Errorf("load reward: %w", err)
	}
	if reward == nil || reward.HouseholdID != actor.HouseholdID || !reward.Active {
		return nil, core.NotFound("reward")
	}

	balance, err := s.rewards.GetPointBalance(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("get point balance: %w", err)
	}
	if balance.Balance < reward.PointCost {
		return nil, core.InsufficientPoints(balance.Balance, reward.PointCost)
	}

	redemption, err := s.rewards.CreateRedemption(reward.ID, actor.HouseholdID, actor.UserID, reward.PointCost)
	if err != nil {
		return nil, fmt.Errorf("create redemption: %w", err)
	}

	s.record(actor, "redemption.request", redemption.ID, nil, redemption)
	s.notifyParents(actor.HouseholdID, model.NotifRedemptionRequested,
		"Reward requested", fmt.Sprintf("A redemption of %q (%d points) is waiting", reward.Title, reward.PointCost))
	s.broadcast(actor.HouseholdID, "redemption", "requested", redemption.ID, nil)
	return redemption, nil
}

// Approve debits the redemption's points. The conditional update on the
// requested state makes the debit happen at most once.
func (s *Service) Approve(actor auth.AuthContext, redemptionID int64) (*model.RewardRedemption, error) {
	return s.decide(actor, redemptionID, model.RedemptionApproved)
}

// Reject is terminal. No points move.
func (s *Service) Reject(actor auth.AuthContext, redemptionID int64) (*model.RewardRedemption, error) {
	return s.decide(actor, redemptionID, model.RedemptionRejected)
}

func (s *Service) decide(actor auth.AuthContext, redemptionID int64, status string) (*model.RewardRedemption, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can decide redemptions")
	}

	redemption, err := s.rewards.GetRedemption(redemptionID)
	if err != nil {
		return nil, fmt.Errorf("load redemption: %w", err)
	}
	if redemption == nil || redemption.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("redemption")
	}
	if redemption.Status == status {
		// Re-deciding to the same outcome is a no-op, not a double debit.
		return redemption, nil
	}

	ok, err := s.rewards.Decide(redemptionID, actor.UserID, status)
	if err != nil {
		return nil, fmt.Errorf("decide redemption: %w", err)
	}
	if !ok {
		return nil, core.InvalidState(redemption.Status, status)
	}

	updated, err := s.rewards.GetRedemption(redemptionID)
	if err != nil {
		return nil, fmt.Errorf("reload redemption: %w", err)
	}

	s.record(actor, "redemption."+status, redemptionID, redemption, updated)
	verb := "approved"
	if status == model.RedemptionRejected {
		verb = "declined"
	}
	s.notifyUser(redemption.RequestedBy, actor.HouseholdID, model.NotifRedemptionDecided,
		"Reward "+verb, fmt.Sprintf("Your reward request was %s", verb))
	s.broadcast(actor.HouseholdID, "redemption", status, redemptionID, nil)
	if status == model.RedemptionApproved {
		s.broadcast(actor.HouseholdID, "leaderboard", "updated", redemption.RequestedBy, nil)
	}
	return updated, nil
}

// Fulfill marks an approved redemption as handed over in the real world.
func (s *Service) Fulfill(actor auth.AuthContext, redemptionID int64) (*model.RewardRedemption, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can fulfill redemptions")
	}

	redemption, err := s.rewards.GetRedemption(redemptionID)
	if err != nil {
		return nil, fmt.Errorf("load redemption: %w", err)
	}
	if redemption == nil || redemption.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("redemption")
	}

	ok, err := s.rewards.Fulfill(redemptionID)
	if err != nil {
		return nil, fmt.Errorf("fulfill redemption: %w", err)
	}
	if !ok {
		return nil, core.InvalidState(redemption.Status, model.RedemptionFulfilled)
	}

	updated, err := s.rewards.GetRedemption(redemptionID)
	if err != nil {
		return nil, fmt.Errorf("reload redemption: %w", err)
	}
	s.record(actor, "redemption.fulfill", redemptionID, redemption, updated)
	return updated, nil
}

// Balance returns a user's derived point balance. Parents can read any
// balance in their household; children only their own.
func (s *Service) Balance(actor auth.AuthContext, userID int64) (*model.PointBalance, error) {
	if userID != actor.UserID {
		if actor.Role != model.RoleParent {
			return nil, core.Unauthorized("children can only view their own balance")
		}
		u, err := s.users.GetByID(userID)
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		if u == nil || u.HouseholdID != actor.HouseholdID {
			return nil, core.NotFound("user")
		}
	}
	return s.rewards.GetPointBalance(userID)
}

// Leaderboard returns household children and their approved friends ranked
// by balance.
func (s *Service) Leaderboard(actor auth.AuthContext) ([]model.LeaderboardEntry, error) {
	return s.rewards.Leaderboard(actor.HouseholdID)
}

func (s *Service) record(actor auth.AuthContext, action string, entityID int64, before, after any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(actor.UserID, actor.Email, action, "redemption", entityID, before, after); err != nil {
		s.logger.Error("audit record", "action", action, "error", err)
	}
}

func (s *Service) notifyParents(householdID int64, kind, title, body string) {
	if s.dispatcher == nil {
		return
	}
	parents, err := s.users.ListParents(householdID)
	if err != nil {
		s.logger.Error("list parents for notification", "household_id", householdID, "error", err)
		return
	}
	for _, p := range parents {
		s.notifyUser(p.ID, householdID, kind, title, body)
	}
}

func (s *Service) notifyUser(userID, householdID int64, kind, title, body string) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(userID, householdID, kind, title, body); err != nil {
		s.logger.Error("dispatch notification", "kind", kind, "user_id", userID, "error", err)
	}
}

func (s *Service) broadcast(householdID int64, entity, action string, id int64, extra map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(householdID, websocket.NewEvent(entity, action, id, extra))
}
