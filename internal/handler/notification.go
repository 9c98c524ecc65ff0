package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/push"
	"github.com/mosshollow/questwick/internal/store"
)

// NotificationHandler serves a member's notification feed and manages their
// browser push subscriptions.
type NotificationHandler struct {
	notifications *store.NotificationStore
	sender        *push.Sender
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *store.NotificationStore, sender *push.Sender, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, sender: sender, logger: logger}
}

// List returns the caller's recent notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeError(w, h.logger, core.Validation("limit must be between 1 and 200"))
			return
		}
		limit = n
	}

	ac, _ := auth.FromContext(r.Context())
	notifications, err := h.notifications.ListForUser(ac.UserID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	writeSuccess(w, http.StatusOK, "notifications", notifications)
}

// VAPIDKey returns the public key clients need to subscribe for push.
func (h *NotificationHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.sender.Configured() {
		writeError(w, h.logger, core.NotFound("push configuration"))
		return
	}
	writeSuccess(w, http.StatusOK, "public_key", h.sender.VAPIDPublicKey())
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dhKey  string `json:"p256dh_key"`
	AuthKey    string `json:"auth_key"`
	DeviceName string `json:"device_name"`
}

// Subscribe registers a browser push subscription for the caller.
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.P256dhKey == "" || req.AuthKey == "" {
		writeError(w, h.logger, core.Validation("endpoint, p256dh_key, and auth_key are required"))
		return
	}

	ac, _ := auth.FromContext(r.Context())
	sub, err := h.notifications.CreateSubscription(ac.UserID, ac.HouseholdID, req.Endpoint, req.P256dhKey, req.AuthKey, req.DeviceName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "subscription", sub)
}

// Unsubscribe removes one of the caller's push subscriptions.
func (h *NotificationHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	subs, err := h.notifications.ListSubscriptionsForUser(ac.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	owned := false
	for _, sub := range subs {
		if sub.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeError(w, h.logger, core.NotFound("subscription"))
		return
	}

	if err := h.notifications.DeleteSubscription(id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", nil)
}
