package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mosshollow/questwick/internal/core"
)

// errorBody is the error half of the response envelope. Every operation
// returns {"success": bool, <entity>?: ..., "error"?: {...}}.
type errorBody struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	CurrentState   string `json:"current_state,omitempty"`
	AttemptedState string `json:"attempted_state,omitempty"`
	ResetAt        string `json:"reset_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeSuccess writes {"success":true} plus the entity under its own key.
func writeSuccess(w http.ResponseWriter, status int, key string, v any) {
	body := map[string]any{"success": true}
	if key != "" {
		body[key] = v
	}
	writeJSON(w, status, body)
}

// writeError maps a domain error to an HTTP status and the envelope. Errors
// without a domain kind become an opaque 500; the detail goes to the log,
// not the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	derr := core.AsError(err)
	if derr == nil {
		logger.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   errorBody{Kind: "internal", Message: "internal error"},
		})
		return
	}

	body := errorBody{
		Kind:           string(derr.Kind),
		Message:        derr.Message,
		CurrentState:   derr.CurrentState,
		AttemptedState: derr.AttemptedState,
	}
	if !derr.ResetAt.IsZero() {
		body.ResetAt = derr.ResetAt.Format(time.RFC3339)
	}

	writeJSON(w, statusForKind(derr.Kind), map[string]any{
		"success": false,
		"error":   body,
	})
}

func statusForKind(kind core.Kind) int {
	switch kind {
	case core.KindValidation, core.KindInvalidCode, core.KindSelfFriend:
		return http.StatusBadRequest
	case core.KindUnauthorized, core.KindBootstrapDenied:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidState, core.KindDuplicateRequest, core.KindInsufficientPoints, core.KindLastAdmin:
		return http.StatusConflict
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   errorBody{Kind: string(core.KindValidation), Message: "invalid JSON"},
		})
		return false
	}
	return true
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// badID writes the standard response for an unparseable {id} path segment.
func badID(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error":   errorBody{Kind: string(core.KindValidation), Message: "invalid id"},
	})
}
