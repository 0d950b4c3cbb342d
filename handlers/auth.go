package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"cartelera/models"
	"cartelera/services/profiles"
)

// sessionSource is the read-only accessor onto the identity provider.
type sessionSource interface {
	Current(r *http.Request) models.Session
}

// AuthHandler exposes the current session and the profile/role surface.
// When the identity provider is disabled every request sees the guest
// session.
type AuthHandler struct {
	identity sessionSource
	profiles *profiles.Service
}

func NewAuthHandler(identity sessionSource, profilesSvc *profiles.Service) *AuthHandler {
	return &AuthHandler{identity: identity, profiles: profilesSvc}
}

func (h *AuthHandler) session(r *http.Request) models.Session {
	if h.identity == nil {
		return models.GuestSession()
	}
	return h.identity.Current(r)
}

// Session returns the caller's session: user reference plus resolved role.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(r))
}

// ListProfiles returns all profiles. Admin only.
func (h *AuthHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	list, err := h.profiles.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.Profile{}
	}
	writeJSON(w, http.StatusOK, list)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole updates a profile's role. Admin only.
func (h *AuthHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.profiles.SetRole(mux.Vars(r)["profileID"], req.Role)
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	case profiles.ErrProfileNotFound:
		writeError(w, http.StatusNotFound, "profile not found")
	case profiles.ErrInvalidRole:
		writeError(w, http.StatusBadRequest, "invalid role")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *AuthHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.profiles == nil {
		writeError(w, http.StatusServiceUnavailable, "profiles not available")
		return false
	}
	if h.session(r).Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}
