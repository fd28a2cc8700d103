package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/anchor-collective/anchor/internal/middleware"
	"github.com/anchor-collective/anchor/internal/user"
)

// UserHandlers holds dependencies for user profile HTTP handlers.
type UserHandlers struct {
	service *user.Service
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(service *user.Service) *UserHandlers {
	return &UserHandlers{service: service}
}

// Register wires the user routes onto the mux.
func (h *UserHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/user/profile", h.HandleProfile)
	mux.HandleFunc("/users/", h.HandleUserByID)
}

// HandleProfile dispatches requests on /user/profile, the caller's own
// profile.
func (h *UserHandlers) HandleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetProfile(w, r)
	case http.MethodPatch:
		h.UpdateProfile(w, r)
	default:
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleUserByID dispatches requests on /users/{id}, public profile reads.
func (h *UserHandlers) HandleUserByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/users/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	h.getUser(w, r, id)
}

// GetProfile handles GET /user/profile - returns the caller's own profile.
func (h *UserHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	h.getUser(w, r, userID)
}

func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve user")
		return
	}

	writeJSON(w, r, http.StatusOK, u)
}

// UpdateProfile handles PATCH /user/profile - partial update of the caller's
// own profile. Uniqueness collisions on email or username return a 409 with a
// field-specific code.
func (h *UserHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var patch user.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	updated, err := h.service.Update(r.Context(), userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "User not found")
		case errors.Is(err, user.ErrEmailTaken):
			WriteError(w, r.Context(), http.StatusConflict, ErrCodeEmailTaken, "Email is already in use")
		case errors.Is(err, user.ErrUsernameTaken):
			WriteError(w, r.Context(), http.StatusConflict, ErrCodeUsernameTaken, "Username is already in use")
		case isProfileValidationError(err):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to update profile")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, updated)
}

// isProfileValidationError reports whether err is one of the profile
// validation errors that should surface as a 400.
func isProfileValidationError(err error) bool {
	switch {
	case errors.Is(err, user.ErrUsernameRequired),
		errors.Is(err, user.ErrUsernameTooLong),
		errors.Is(err, user.ErrInvalidUsername),
		errors.Is(err, user.ErrEmailRequired),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, user.ErrDisplayNameTooLong),
		errors.Is(err, user.ErrBioTooLong),
		errors.Is(err, user.ErrInvalidAvatarURL):
		return true
	}
	return false
}
