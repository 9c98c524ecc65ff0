package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/social"
)

type SocialHandler struct {
	social *social.Service
	logger *slog.Logger
}

func NewSocialHandler(svc *social.Service, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{social: svc, logger: logger}
}

func (h *SocialHandler) InviteCode(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	code, err := h.social.InviteCode(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "invite_code", code)
}

func (h *SocialHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	code, err := h.social.RegenerateInviteCode(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "invite_code", code)
}

type friendRequestBody struct {
	FriendCode string `json:"friend_code"`
}

func (h *SocialHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req friendRequestBody
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	friendship, err := h.social.Request(ac, strings.ToUpper(strings.TrimSpace(req.FriendCode)))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "friendship", friendship)
}

func (h *SocialHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	friendship, err := h.social.Approve(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "friendship", friendship)
}

func (h *SocialHandler) Deny(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	friendship, err := h.social.Deny(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "friendship", friendship)
}

func (h *SocialHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	pending, err := h.social.ListPending(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "friendships", pending)
}

func (h *SocialHandler) Friends(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	friends, err := h.social.Friends(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "friend_ids", friends)
}
