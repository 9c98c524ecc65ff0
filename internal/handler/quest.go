package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/quest"
)

type QuestHandler struct {
	quests *quest.Service
	logger *slog.Logger
}

func NewQuestHandler(quests *quest.Service, logger *slog.Logger) *QuestHandler {
	return &QuestHandler{quests: quests, logger: logger}
}

type assignQuestRequest struct {
	ChildID        int64   `json:"child_id"`
	TemplateID     *int64  `json:"template_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Points         int     `json:"points"`
	DueDate        *string `json:"due_date"`
	StreakEligible bool    `json:"streak_eligible"`
}

func (h *QuestHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignQuestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params := quest.AssignParams{
		ChildID:        req.ChildID,
		TemplateID:     req.TemplateID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Points:         req.Points,
		StreakEligible: req.StreakEligible,
	}
	if req.DueDate != nil {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   errorBody{Kind: "validation", Message: "due_date must be RFC3339"},
			})
			return
		}
		params.DueDate = &due
	}

	ac, _ := auth.FromContext(r.Context())
	task, err := h.quests.Assign(ac, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "task", task)
}

type submitQuestRequest struct {
	Reflection string `json:"reflection"`
}

func (h *QuestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}
	var req submitQuestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	task, err := h.quests.Submit(ac, id, req.Reflection)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "task", task)
}

func (h *QuestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	task, err := h.quests.Approve(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "task", task)
}

type rejectQuestRequest struct {
	Reason string `json:"reason"`
}

func (h *QuestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}
	var req rejectQuestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	task, err := h.quests.Reject(ac, id, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "task", task)
}

// List returns the caller's own quests for children, or the household's
// quests (optionally filtered by ?status=) for parents.
func (h *QuestHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	if !auth.IsParent(r.Context()) {
		tasks, err := h.quests.ListForChild(ac)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusOK, "tasks", tasks)
		return
	}

	tasks, err := h.quests.ListForHousehold(ac, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "tasks", tasks)
}
