package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// TemplateHandler manages quest templates. System templates are curated by
// admins and visible everywhere; household templates belong to one household.
type TemplateHandler struct {
	templates *store.TemplateStore
	logger    *slog.Logger
}

func NewTemplateHandler(templates *store.TemplateStore, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

// ListAvailable returns active system templates plus the caller's household
// templates.
func (h *TemplateHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	templates, err := h.templates.ListAvailable(ac.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if templates == nil {
		templates = []model.QuestTemplate{}
	}
	writeSuccess(w, http.StatusOK, "templates", templates)
}

type createTemplateRequest struct {
	Key             string `json:"key"`
	Scope           string `json:"scope"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	SuggestedPoints int    `json:"suggested_points"`
}

// Create adds a template. System scope needs the admin claim; household scope
// needs the parent role and always lands in the caller's own household.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Key = strings.TrimSpace(req.Key)
	req.Title = strings.TrimSpace(req.Title)
	if req.Key == "" || req.Title == "" {
		writeError(w, h.logger, core.Validation("key and title are required"))
		return
	}
	if req.SuggestedPoints <= 0 {
		writeError(w, h.logger, core.Validation("suggested_points must be positive"))
		return
	}

	ac, _ := auth.FromContext(r.Context())
	var householdID *int64
	switch req.Scope {
	case model.TemplateScopeSystem:
		if !ac.Admin {
			writeError(w, h.logger, core.Unauthorized("only admins can create system templates"))
			return
		}
	case model.TemplateScopeHousehold:
		if ac.Role != model.RoleParent {
			writeError(w, h.logger, core.Unauthorized("only parents can create household templates"))
			return
		}
		householdID = &ac.HouseholdID
	default:
		writeError(w, h.logger, core.Validation("scope must be system or household"))
		return
	}

	existing, err := h.templates.GetByKey(req.Key)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeError(w, h.logger, core.DuplicateRequest("a template with that key already exists"))
		return
	}

	template, err := h.templates.Create(req.Key, req.Scope, householdID, req.Title, req.Category, req.SuggestedPoints)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "template", template)
}

type updateTemplateRequest struct {
	Title           string `json:"title"`
	Category        string `json:"category"`
	SuggestedPoints int    `json:"suggested_points"`
}

// Update edits a template's display fields.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	existing, err := h.editableTemplate(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" {
		req.Title = existing.Title
	}
	if req.Category == "" {
		req.Category = existing.Category
	}
	if req.SuggestedPoints <= 0 {
		req.SuggestedPoints = existing.SuggestedPoints
	}

	updated, err := h.templates.UpdateDisplay(id, req.Title, req.Category, req.SuggestedPoints)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "template", updated)
}

// Deactivate retires a template without deleting it. Quests already assigned
// from it are unaffected.
func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Activate returns a retired template to the picker.
func (h *TemplateHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *TemplateHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if _, err := h.editableTemplate(ac, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.templates.SetActive(id, active)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "template", updated)
}

// editableTemplate loads a template and checks the caller may change it:
// admins for system scope, the owning household's parents for household scope.
func (h *TemplateHandler) editableTemplate(ac auth.AuthContext, id int64) (*model.QuestTemplate, error) {
	template, err := h.templates.GetByID(id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, core.NotFound("template")
	}

	switch template.Scope {
	case model.TemplateScopeSystem:
		if !ac.Admin {
			return nil, core.Unauthorized("only admins can edit system templates")
		}
	case model.TemplateScopeHousehold:
		if ac.Role != model.RoleParent || template.HouseholdID == nil || *template.HouseholdID != ac.HouseholdID {
			return nil, core.NotFound("template")
		}
	}
	return template, nil
}
