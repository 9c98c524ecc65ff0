package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/core"
	"github.com/mosshollow/questwick/internal/model"
	"github.com/mosshollow/questwick/internal/store"
)

// UserHandler manages household members: listing, child accounts, profile
// edits, and the optional device PIN children use on shared screens.
type UserHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewUserHandler(users *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Me returns the caller's own profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	user, err := h.users.GetByID(ac.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user == nil {
		writeError(w, h.logger, core.NotFound("user"))
		return
	}
	writeSuccess(w, http.StatusOK, "user", user)
}

// ListMembers returns every member of the caller's household.
func (h *UserHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	members, err := h.users.ListByHousehold(ac.HouseholdID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []model.User{}
	}
	writeSuccess(w, http.StatusOK, "members", members)
}

type createChildRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	AgeBand string `json:"age_band"`
}

// CreateChild adds a child account to the caller's household. Parent only;
// the route guard enforces the role, the handler owns the field rules.
func (h *UserHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req createChildRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		writeError(w, h.logger, core.Validation("email and name are required"))
		return
	}
	switch req.AgeBand {
	case model.AgeBandYoung, model.AgeBandKid, model.AgeBandTeen:
	default:
		writeError(w, h.logger, core.Validation("age_band must be young, kid, or teen"))
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

	ac, _ := auth.FromContext(r.Context())
	child, err := h.users.Create(ac.HouseholdID, req.Email, req.Name, model.RoleChild, req.AgeBand)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "user", child)
}

type updateProfileRequest struct {
	Name        string `json:"name"`
	AgeBand     string `json:"age_band"`
	AvatarEmoji string `json:"avatar_emoji"`
}

// UpdateProfile edits a member's display fields. A member may edit their own
// profile; a parent may edit anyone in their household.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	target, err := h.memberForEdit(ac, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = target.Name
	}
	if req.AgeBand == "" {
		req.AgeBand = target.AgeBand
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = target.AvatarEmoji
	}

	updated, err := h.users.UpdateProfile(id, req.Name, req.AgeBand, req.AvatarEmoji)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user", updated)
}

// Disable marks a member inactive. Parent only, same household, and never
// against yourself. Disabled members keep their history but cannot sign in.
func (h *UserHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.UserStatusDisabled)
}

// Enable reactivates a disabled member.
func (h *UserHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.UserStatusActive)
}

func (h *UserHandler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if id == ac.UserID {
		writeError(w, h.logger, core.Validation("cannot change your own status"))
		return
	}
	if _, err := h.householdMember(ac, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.users.SetStatus(id, status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "user", updated)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPIN sets a member's 4-digit device PIN. Members set their own; parents
// may set a child's.
func (h *UserHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if _, err := h.memberForEdit(ac, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req pinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeError(w, h.logger, core.Validation("PIN must be exactly 4 digits"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.SetPIN(id, string(hash)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", nil)
}

// ClearPIN removes a member's PIN. Same access rule as SetPIN. The member
// cannot sign in again until a new PIN is set.
func (h *UserHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if _, err := h.memberForEdit(ac, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.users.ClearPIN(id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", nil)
}

// VerifyPIN checks a member's PIN without changing it, for unlocking the
// member's view on a shared device.
func (h *UserHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badID(w)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	if _, err := h.householdMemberAny(ac, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req pinRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hash, err := h.users.GetPINHash(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if hash == "" {
		writeError(w, h.logger, core.Validation("no PIN set for this member"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeError(w, h.logger, core.Unauthorized("incorrect PIN"))
		return
	}
	writeSuccess(w, http.StatusOK, "", nil)
}

// memberForEdit loads the target and checks edit rights: self, or a parent
// acting within their own household.
func (h *UserHandler) memberForEdit(ac auth.AuthContext, id int64) (*model.User, error) {
	target, err := h.householdMemberAny(ac, id)
	if err != nil {
		return nil, err
	}
	if id != ac.UserID && ac.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can edit other members")
	}
	return target, nil
}

// householdMember is memberForEdit's parent-only variant.
func (h *UserHandler) householdMember(ac auth.AuthContext, id int64) (*model.User, error) {
	target, err := h.householdMemberAny(ac, id)
	if err != nil {
		return nil, err
	}
	if ac.Role != model.RoleParent {
		return nil, core.Unauthorized("only parents can manage members")
	}
	return target, nil
}

// householdMemberAny loads the target and checks only household membership.
func (h *UserHandler) householdMemberAny(ac auth.AuthContext, id int64) (*model.User, error) {
	target, err := h.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if target == nil || target.HouseholdID != ac.HouseholdID {
		return nil, core.NotFound("user")
	}
	return target, nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
