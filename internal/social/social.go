package social

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/ratelimit"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

// friendRequestLimit throttles how fast one child can fire friend requests.
var friendRequestLimit = ratelimit.Config{MaxRequests: 5, Window: time.Hour}

// Service runs the friendship workflow: invite codes, requests, and
// parental approval. Approval authority belongs to the requesting child's
// parent, not the friend's.
type Service struct {
	friendships *store.FriendshipStore
	users       *store.UserStore
	limiter     *ratelimit.Limiter
	dispatcher  *notify.Dispatcher
	recorder    *audit.Recorder
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewService(friendships *store.FriendshipStore, users *store.UserStore, limiter *ratelimit.Limiter, dispatcher *notify.Dispatcher, recorder *audit.Recorder, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		friendships: friendships,
		users:       users,
		limiter:     limiter,
		dispatcher:  dispatcher,
		recorder:    recorder,
		hub:         hub,
		logger:      logger,
	}
}

// InviteCode returns the caller's active friend code, generating one on
// first use.
func (s *Service) InviteCode(actor auth.AuthContext) (*model.InviteCode, error) {
	if actor.Role != model.RoleChild {
		return nil, core.Unauthorized("only children have friend codes")
	}
	code, err := s.friendships.ActiveCodeForUser(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load invite code: %w", err)
	}
	if code != nil {
		return code, nil
	}
	return s.friendships.RegenerateCode(actor.UserID)
}

// RegenerateInviteCode replaces the caller's code. The old code stops
// resolving the moment the new one exists.
func (s *Service) RegenerateInviteCode(actor auth.AuthContext) (*model.InviteCode, error) {
	if actor.Role != model.RoleChild {
		return nil, core.Unauthorized("only children have friend codes")
	}
	code, err := s.friendships.RegenerateCode(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("regenerate invite code: %w", err)
	}
	s.record(actor, "invite_code.regenerate", actor.UserID, nil, nil)
	return code, nil
}

// Request creates a pending friendship from the caller to whichever child
// owns the given code.
func (s *Service) Request(actor auth.AuthContext, friendCode string) (*model.Friendship, error) {
	if actor.Role != model.RoleChild {
		return nil, core.Unauthorized("only children can send friend requests")
	}

	if s.limiter != nil {
		res := s.limiter.Check(fmt.Sprintf("friend_request:%d", actor.UserID), friendRequestLimit)
		if !res.Allowed {
			return nil, core.RateLimited(res.ResetAt)
		}
	}

	friendID, err := s.friendships.ResolveCode(friendCode)
	if err != nil {
		return nil, fmt.Errorf("resolve invite code: %w", err)
	}
	if friendID == 0 {
		return nil, core.InvalidCode(friendCode)
	}
	if friendID == actor.UserID {
		return nil, core.SelfFriend()
	}

	friendship, err := s.friendships.CreatePending(actor.UserID, friendID)
	if errors.Is(err, store.ErrPairExists) {
		return nil, core.DuplicateRequest("a request between these children already exists")
	}
	if err != nil {
		return nil, fmt.Errorf("create friendship: %w", err)
	}

	s.record(actor, "friendship.request", friendship.ID, nil, friendship)
	// Approval authority sits with the requester's own household.
	s.notifyParents(actor.HouseholdID, model.NotifFriendRequested,
		"Friend request", "A friend request is waiting for your approval")
	s.broadcast(actor.HouseholdID, "friendship", "requested", friendship.ID, nil)
	return friendship, nil
}

// Approve accepts a pending friendship. Both children immediately count
// each other as friends on the leaderboard.
func (s *Service) Approve(actor auth.AuthContext, friendshipID int64) (*model.Friendship, error) {
	return s.decide(actor, friendshipID, model.FriendshipApproved)
}

// Deny is terminal for this request; the children can try again later.
func (s *Service) Deny(actor auth.AuthContext, friendshipID int64) (*model.Friendship, error) {
	return s.decide(actor, friendshipID, model.FriendshipDenied)
}

func (s *Service) decide(actor auth.AuthContext, friendshipID int64, status string) (*model.Friendship, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can decide friend requests")
	}

	friendship, err := s.friendships.GetByID(friendshipID)
	if err != nil {
		return nil, fmt.Errorf("load friendship: %w", err)
	}
	if friendship == nil {
		return nil, core.NotFound("friend request")
	}

	requester, err := s.users.GetByID(friendship.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("load requester: %w", err)
	}
	if requester == nil || requester.HouseholdID != actor.HouseholdID {
		return nil, core.Unauthorized("only the requesting child's parent can decide this request")
	}

	ok, err := s.friendships.Decide(friendshipID, actor.UserID, status)
	if err != nil {
		return nil, fmt.Errorf("decide friendship: %w", err)
	}
	if !ok {
		return nil, core.InvalidState(friendship.Status, status)
	}

	updated, err := s.friendships.GetByID(friendshipID)
	if err != nil {
		return nil, fmt.Errorf("reload friendship: %w", err)
	}

	s.record(actor, "friendship."+status, friendshipID, friendship, updated)
	verb := "approved"
	if status == model.FriendshipDenied {
		verb = "denied"
	}
	s.notifyUser(friendship.RequesterID, actor.HouseholdID, model.NotifFriendDecided,
		"Friend request "+verb, fmt.Sprintf("Your friend request was %s", verb))
	if status == model.FriendshipApproved {
		s.broadcast(actor.HouseholdID, "leaderboard", "updated", friendship.RequesterID, nil)
	}
	return updated, nil
}

// ListPending returns the requests waiting on the caller's household.
func (s *Service) ListPending(actor auth.AuthContext) ([]model.Friendship, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can list pending friend requests")
	}
	return s.friendships.ListPendingForParent(actor.HouseholdID)
}

// Friends returns the IDs of the caller's approved friends.
func (s *Service) Friends(actor auth.AuthContext) ([]int64, error) {
	return s.friendships.ListApprovedForUser(actor.UserID)
}

func (s *Service) record(actor auth.AuthContext, action string, entityID int64, before, after any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(actor.UserID, actor.Email, action, "friendship", entityID, before, after); err != nil {
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
