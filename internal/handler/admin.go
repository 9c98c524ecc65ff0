package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mosshollow/questwick/internal/adminacl"
	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/job"
	"github.com/mosshollow/questwick/internal/store"
)

type AdminHandler struct {
	acl    *adminacl.Service
	runner *job.Runner
	audits *store.AuditStore
	logger *slog.Logger
}

func NewAdminHandler(acl *adminacl.Service, runner *job.Runner, audits *store.AuditStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{acl: acl, runner: runner, audits: audits, logger: logger}
}

// BootstrapEligibility reports whether the caller could become the first
// admin right now.
func (h *AdminHandler) BootstrapEligibility(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	eligible, err := h.acl.CheckBootstrapEligibility(ac.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "eligible", eligible)
}

// Bootstrap promotes the caller to the first admin.
func (h *AdminHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.acl.Bootstrap(ac); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "email", ac.Email)
}

type adminTargetRequest struct {
	Email string `json:"email"`
}

func (h *AdminHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var req adminTargetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if err := h.acl.Promote(ac, req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "email", req.Email)
}

func (h *AdminHandler) Demote(w http.ResponseWriter, r *http.Request) {
	var req adminTargetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if err := h.acl.Demote(ac, req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "email", req.Email)
}

func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	admins, err := h.acl.List(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "admins", admins)
}

type runJobRequest struct {
	Type        string  `json:"type"`
	HouseholdID int64   `json:"household_id"`
	UserID      int64   `json:"user_id"`
	From        *string `json:"from"`
	To          *string `json:"to"`
}

// RunJob executes a maintenance job synchronously and returns its result.
// Job failures still respond 200: the result carries its own success flag.
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	var req runJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params := job.Params{}
	if req.From != nil {
		from, err := time.Parse(time.RFC3339, *req.From)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   errorBody{Kind: "validation", Message: "from must be RFC3339"},
			})
			return
		}
		params.From = from
	}
	if req.To != nil {
		to, err := time.Parse(time.RFC3339, *req.To)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   errorBody{Kind: "validation", Message: "to must be RFC3339"},
			})
			return
		}
		params.To = to
	}

	result := h.runner.Run(req.Type, job.Scope{HouseholdID: req.HouseholdID, UserID: req.UserID}, params)
	writeJSON(w, http.StatusOK, result)
}

// AuditTrail returns the audit entries for one entity.
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID, err := strconv.ParseInt(r.URL.Query().Get("entity_id"), 10, 64)
	if entityType == "" || err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   errorBody{Kind: "validation", Message: "entity_type and entity_id are required"},
		})
		return
	}

	entries, err := h.audits.ListByEntity(entityType, entityID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "entries", entries)
}
