package quest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mosshollow/questwick/internal/audit"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/encourage"
	"github.com/mosshollow/questwick/internal/gamify"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/notify"
	"github.com/mosshollow/questwick/internal/store"
	"github.com/mosshollow/questwick/internal/websocket"
)

// Service runs the quest lifecycle: assign, submit, approve, reject.
// Transition guards live in conditional updates at the store layer; this
// layer adds role and ownership checks, side effects, and audit records.
type Service struct {
	tasks      *store.TaskStore
	templates  *store.TemplateStore
	users      *store.UserStore
	streaks    *store.StreakStore
	engine     *gamify.Engine
	dispatcher *notify.Dispatcher
	encourager *encourage.Client
	recorder   *audit.Recorder
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewService(
	tasks *store.TaskStore,
	templates *store.TemplateStore,
	users *store.UserStore,
	streaks *store.StreakStore,
	engine *gamify.Engine,
	dispatcher *notify.Dispatcher,
	encourager *encourage.Client,
	recorder *audit.Recorder,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Service {
	return &Service{
		tasks:      tasks,
		templates:  templates,
		users:      users,
		streaks:    streaks,
		engine:     engine,
		dispatcher: dispatcher,
		encourager: encourager,
		recorder:   recorder,
		hub:        hub,
		logger:     logger,
	}
}

// AssignParams describes a new quest. When TemplateID is set, empty display
// fields default from the template.
type AssignParams struct {
	ChildID        int64
	TemplateID     *int64
	Title          string
	Description    string
	Category       string
	Points         int
	DueDate        *time.Time
	StreakEligible bool
}

// Assign creates a pending quest for a child in the caller's household.
func (s *Service) Assign(actor auth.AuthContext, p AssignParams) (*model.Task, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can assign quests")
	}

	child, err := s.users.GetByID(p.ChildID)
	if err != nil {
		return nil, fmt.Errorf("load child: %w", err)
	}
	if child == nil || child.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("child")
	}
	if !child.IsChild() {
		return nil, core.Validation("quests can only be assigned to children")
	}
	if child.Status != model.UserStatusActive {
		return nil, core.Validation("cannot assign to a disabled account")
	}

	if p.TemplateID != nil {
		tpl, err := s.templates.GetByID(*p.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("load template: %w", err)
		}
		if tpl == nil || !tpl.Active {
			return nil, core.NotFound("quest template")
		}
		if tpl.Scope == model.TemplateScopeHousehold && (tpl.HouseholdID == nil || *tpl.HouseholdID != actor.HouseholdID) {
			return nil, core.NotFound("quest template")
		}
		if p.Title == "" {
			p.Title = tpl.Title
		}
		if p.Category == "" {
			p.Category = tpl.Category
		}
		if p.Points == 0 {
			p.Points = tpl.SuggestedPoints
		}
	}

	if p.Title == "" {
		return nil, core.Validation("title is required")
	}
	if p.Points <= 0 {
		return nil, core.Validation("points must be greater than zero")
	}

	task, err := s.tasks.Create(store.CreateTaskParams{
		HouseholdID:    actor.HouseholdID,
		TemplateID:     p.TemplateID,
		AssignedTo:     child.ID,
		AssignedBy:     actor.UserID,
		Title:          p.Title,
		Description:    p.Description,
		Category:       p.Category,
		Points:         p.Points,
		DueDate:        p.DueDate,
		StreakEligible: p.StreakEligible,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.record(actor, "quest.assign", task.ID, nil, task)
	s.notifyUser(child.ID, actor.HouseholdID, model.NotifQuestAssigned,
		"New quest", fmt.Sprintf("%s (%d points)", task.Title, task.Points))
	s.broadcast(actor.HouseholdID, "quest", "assigned", task.ID, nil)
	return task, nil
}

// Submit moves a pending quest to submitted. Only the assigned child may
// submit, and only from pending.
func (s *Service) Submit(actor auth.AuthContext, taskID int64, reflection string) (*model.Task, error) {
	task, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil || task.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("quest")
	}
	if task.AssignedTo != actor.UserID {
		return nil, core.Unauthorized("only the assigned child can submit this quest")
	}

	ok, err := s.tasks.Submit(taskID, reflection)
	if err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	if !ok {
		return nil, core.InvalidState(task.Status, model.TaskStatusSubmitted)
	}

	updated, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}

	s.record(actor, "quest.submit", taskID, task, updated)
	s.notifyUser(task.AssignedBy, actor.HouseholdID, model.NotifQuestSubmitted,
		"Quest submitted", fmt.Sprintf("%s finished %q", actor.Email, task.Title))
	s.broadcast(actor.HouseholdID, "quest", "submitted", taskID, nil)
	return updated, nil
}

// Approve moves a submitted quest to approved and credits its points. It is
// idempotent: approving an already-approved quest succeeds without crediting
// again or re-firing side effects.
func (s *Service) Approve(actor auth.AuthContext, taskID int64) (*model.Task, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can approve quests")
	}

	task, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil || task.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("quest")
	}
	if task.Status == model.TaskStatusApproved {
		return task, nil
	}

	ok, err := s.tasks.Approve(taskID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("approve task: %w", err)
	}

	updated, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}
	if !ok {
		// Lost a race or the task was never submitted. A concurrent
		// approval still counts as success.
		if updated.Status == model.TaskStatusApproved {
			return updated, nil
		}
		return nil, core.InvalidState(updated.Status, model.TaskStatusApproved)
	}

	s.record(actor, "quest.approve", taskID, task, updated)
	s.afterApproval(updated)
	return updated, nil
}

// afterApproval runs the gamification pipeline and notifications for a
// freshly approved quest. Failures here are logged, never propagated: the
// approval already happened.
func (s *Service) afterApproval(task *model.Task) {
	badges, err := s.engine.OnQuestApproved(task.AssignedTo)
	if err != nil {
		s.logger.Error("gamification after approval", "task_id", task.ID, "error", err)
	}

	body := fmt.Sprintf("%s approved, +%d points", task.Title, task.Points)
	if s.encourager != nil {
		if child, err := s.users.GetByID(task.AssignedTo); err == nil && child != nil {
			streakDays := 0
			if streak, err := s.streaks.Get(task.AssignedTo); err == nil {
				streakDays = streak.CurrentStreak
			}
			body = s.encourager.Message(child.Name, task.Title, streakDays)
		}
	}
	s.notifyUser(task.AssignedTo, task.HouseholdID, model.NotifQuestApproved, "Quest approved", body)

	for _, b := range badges {
		s.notifyUser(task.AssignedTo, task.HouseholdID, model.NotifBadgeAwarded,
			"New badge", fmt.Sprintf("You earned %q", b.Title))
	}

	s.broadcast(task.HouseholdID, "quest", "approved", task.ID, map[string]any{"points": task.Points})
	s.broadcast(task.HouseholdID, "leaderboard", "updated", task.AssignedTo, nil)
}

// Reject returns a submitted quest to pending so it can be redone. No points
// or streak state are touched.
func (s *Service) Reject(actor auth.AuthContext, taskID int64, reason string) (*model.Task, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can reject quests")
	}

	task, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil || task.HouseholdID != actor.HouseholdID {
		return nil, core.NotFound("quest")
	}

	ok, err := s.tasks.Reject(taskID, reason)
	if err != nil {
		return nil, fmt.Errorf("reject task: %w", err)
	}
	if !ok {
		return nil, core.InvalidState(task.Status, model.TaskStatusPending)
	}

	updated, err := s.tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}

	s.record(actor, "quest.reject", taskID, task, updated)
	body := fmt.Sprintf("%s needs another pass", task.Title)
	if reason != "" {
		body = fmt.Sprintf("%s: %s", task.Title, reason)
	}
	s.notifyUser(task.AssignedTo, actor.HouseholdID, model.NotifQuestRejected, "Quest returned", body)
	s.broadcast(actor.HouseholdID, "quest", "rejected", taskID, nil)
	return updated, nil
}

// ListForChild returns a child's own quests.
func (s *Service) ListForChild(actor auth.AuthContext) ([]model.Task, error) {
	return s.tasks.ListByAssignee(actor.UserID)
}

// ListForHousehold returns household quests, optionally filtered by status.
func (s *Service) ListForHousehold(actor auth.AuthContext, status string) ([]model.Task, error) {
	if actor.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can list household quests")
	}
	return s.tasks.ListByHousehold(actor.HouseholdID, status)
}

func (s *Service) record(actor auth.AuthContext, action string, entityID int64, before, after any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(actor.UserID, actor.Email, action, "task", entityID, before, after); err != nil {
		s.logger.Error("audit record", "action", action, "error", err)
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
