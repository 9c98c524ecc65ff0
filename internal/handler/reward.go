package handler

import (
	"log/slog"
	"net/http"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/reward"
)

type RewardHandler struct {
	rewards *reward.Service
	logger  *slog.Logger
}

func NewRewardHandler(rewards *reward.Service, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, logger: logger}
}

type rewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PointCost   int    `json:"point_cost"`
	Active      bool   `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	created, err := h.rewards.CreateReward(ac, req.Title, req.Description, req.PointCost, req.Active)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "reward", created)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}
	var req rewardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ac, _ := auth.FromContext(r.Context())
	updated, err := h.rewards.UpdateReward(ac, id, req.Title, req.Description, req.PointCost, req.Active)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "reward", updated)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	rewards, err := h.rewards.ListRewards(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "rewards", rewards)
}

func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	redemption, err := h.rewards.Request(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "redemption", redemption)
}

func (h *RewardHandler) ApproveRedemption(w http.ResponseWriter, r *http.Request) {
	h.decideRedemption(w, r, h.rewards.Approve)
}

func (h *RewardHandler) RejectRedemption(w http.ResponseWriter, r *http.Request) {
	h.decideRedemption(w, r, h.rewards.Reject)
}

func (h *RewardHandler) FulfillRedemption(w http.ResponseWriter, r *http.Request) {
	h.decideRedemption(w, r, h.rewards.Fulfill)
}

func (h *RewardHandler) decideRedemption(w http.ResponseWriter, r *http.Request, op func(auth.AuthContext, int64) (*model.RewardRedemption, error)) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	redemption, err := op(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "redemption", redemption)
}

func (h *RewardHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	balance, err := h.rewards.Balance(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "balance", balance)
}

func (h *RewardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	entries, err := h.rewards.Leaderboard(ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "leaderboard", entries)
}
