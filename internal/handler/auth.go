package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/identity"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// AuthHandler covers the unauthenticated surface: creating a household with
// its first parent, and exchanging an email plus PIN for a token.
type AuthHandler struct {
	identity   *identity.Service
	users      *store.UserStore
	households *store.HouseholdStore
	logger     *slog.Logger
}

func NewAuthHandler(identity *identity.Service, users *store.UserStore, households *store.HouseholdStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, users: users, households: households, logger: logger}
}

type registerRequest struct {
	HouseholdName string `json:"household_name"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	PIN           string `json:"pin"`
}

// Register creates a household and its founding parent, and returns a token
// so the client is signed in immediately. The PIN becomes the parent's
// sign-in credential.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.HouseholdName = strings.TrimSpace(req.HouseholdName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.HouseholdName == "" || req.Email == "" || req.Name == "" {
		writeError(w, h.logger, core.Validation("household_name, email, and name are required"))
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeError(w, h.logger, core.Validation("PIN must be exactly 4 digits"))
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if existing != nil {
		writeError(w, h.logger, core.Validation("email is already in use"))
		return
	}

	household, err := h.households.Create(req.HouseholdName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.users.Create(household.ID, req.Email, req.Name, model.RoleParent, model.AgeBandNone)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.SetPIN(user.ID, string(hash)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	user.HasPIN = true

	token, err := h.identity.IssueToken(user, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"token":     token,
		"user":      user,
		"household": household,
	})
}

type loginRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

// Login exchanges an email and PIN for a token. An account with no PIN set
// cannot sign in until a parent sets one. The error is the same whether the
// email or the PIN was wrong.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		writeError(w, h.logger, core.Validation("email is required"))
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user == nil || user.Status != model.UserStatusActive {
		writeError(w, h.logger, core.Unauthorized("invalid credentials"))
		return
	}

	hash, err := h.users.GetPINHash(user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)) != nil {
		writeError(w, h.logger, core.Unauthorized("invalid credentials"))
		return
	}

	token, err := h.identity.IssueToken(user, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    user,
	})
}
