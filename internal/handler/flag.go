package handler

import (
	"log/slog"
	"net/http"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/flag"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

type FlagHandler struct {
	flags     *flag.Service
	flagStore *store.FlagStore
	users     *store.UserStore
	logger    *slog.Logger
}

func NewFlagHandler(flags *flag.Service, flagStore *store.FlagStore, users *store.UserStore, logger *slog.Logger) *FlagHandler {
	return &FlagHandler{flags: flags, flagStore: flagStore, users: users, logger: logger}
}

// Resolve returns the flag that applies to the caller, most specific scope
// first (user beats household beats global).
func (h *FlagHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	ac, _ := auth.FromContext(r.Context())

	resolved, err := h.flags.Lookup(key, ac.UserID, ac.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "flag", resolved)
}

type setFlagRequest struct {
	ScopeType string `json:"scope_type"`
	ScopeID   int64  `json:"scope_id"`
	Key       string `json:"key"`
	Enabled   bool   `json:"enabled"`
	ValueJSON string `json:"value_json"`
}

// Set writes a flag. Global scope needs the admin claim; household and user
// scopes need a parent acting inside their own household.
func (h *FlagHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req setFlagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   errorBody{Kind: "validation", Message: "key is required"},
		})
		return
	}

	if !h.authorizeScope(w, r, req.ScopeType, req.ScopeID) {
		return
	}

	saved, err := h.flagStore.Set(req.ScopeType, req.ScopeID, req.Key, req.Enabled, req.ValueJSON)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "flag", saved)
}

func (h *FlagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req setFlagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !h.authorizeScope(w, r, req.ScopeType, req.ScopeID) {
		return
	}

	if err := h.flagStore.Delete(req.ScopeType, req.ScopeID, req.Key); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", nil)
}

func (h *FlagHandler) authorizeScope(w http.ResponseWriter, r *http.Request, scopeType string, scopeID int64) bool {
	ac, _ := auth.FromContext(r.Context())

	switch scopeType {
	case model.FlagScopeGlobal:
		if !ac.Admin {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false,
				"error":   errorBody{Kind: "unauthorized", Message: "global flags require the admin claim"},
			})
			return false
		}
	case model.FlagScopeHousehold:
		if ac.Role != model.RoleParent || scopeID != ac.HouseholdID {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false,
				"error":   errorBody{Kind: "unauthorized", Message: "household flags require a parent of that household"},
			})
			return false
		}
	case model.FlagScopeUser:
		if ac.Role != model.RoleParent {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"success": false,
				"error":   errorBody{Kind: "unauthorized", Message: "user flags require a parent"},
			})
			return false
		}
		// The target user must live in the parent's own household.
		target, err := h.users.GetByID(scopeID)
		if err != nil {
			writeError(w, h.logger, err)
			return false
		}
		if target == nil || target.HouseholdID != ac.HouseholdID {
			writeError(w, h.logger, core.NotFound("user"))
			return false
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   errorBody{Kind: "validation", Message: "unknown scope_type"},
		})
		return false
	}
	return true
}
