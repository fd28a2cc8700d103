// Package api provides HTTP handlers for the Anchor API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anchor-collective/anchor/internal/anchor"
	"github.com/anchor-collective/anchor/internal/geo"
	"github.com/anchor-collective/anchor/internal/middleware"
	"github.com/anchor-collective/anchor/internal/validate"
)

// CreateAnchorRequest represents the request body for creating an anchor.
type CreateAnchorRequest struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	Altitude       *float64   `json:"altitude,omitempty"`
	Visibility     string     `json:"visibility"`
	UnlockRadius   *int       `json:"unlock_radius,omitempty"`
	MaxUnlock      *int       `json:"max_unlock,omitempty"`
	ActivationTime *time.Time `json:"activation_time,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// AnchorHandlers holds dependencies for anchor HTTP handlers.
type AnchorHandlers struct {
	service   *anchor.Service
	unlock    *anchor.UnlockEngine
	discovery *anchor.Discovery
}

// NewAnchorHandlers creates a new AnchorHandlers instance.
func NewAnchorHandlers(service *anchor.Service, unlock *anchor.UnlockEngine, discovery *anchor.Discovery) *AnchorHandlers {
	return &AnchorHandlers{
		service:   service,
		unlock:    unlock,
		discovery: discovery,
	}
}

// Register wires the anchor routes onto the mux.
func (h *AnchorHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/anchors", h.HandleAnchors)
	mux.HandleFunc("/anchors/", h.HandleAnchorByID)
}

// HandleAnchors dispatches requests on the /anchors collection.
func (h *AnchorHandlers) HandleAnchors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.CreateAnchor(w, r)
	default:
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// HandleAnchorByID dispatches requests under /anchors/: nearby discovery,
// single-anchor operations, and unlock attempts.
func (h *AnchorHandlers) HandleAnchorByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/anchors/")
	parts := strings.Split(rest, "/")

	if len(parts) == 1 && parts[0] == "nearby" {
		if r.Method != http.MethodGet {
			WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.Nearby(w, r)
		return
	}

	if len(parts) == 0 || parts[0] == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Anchor ID is required")
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "unlock" {
		if r.Method != http.MethodPost {
			WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
			return
		}
		h.UnlockAnchor(w, r, id)
		return
	}

	if len(parts) != 1 {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.GetAnchor(w, r, id)
	case http.MethodPatch:
		h.UpdateAnchor(w, r, id)
	case http.MethodDelete:
		h.DeleteAnchor(w, r, id)
	default:
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// CreateAnchor handles POST /anchors - drops a new anchor at a location.
func (h *AnchorHandlers) CreateAnchor(w http.ResponseWriter, r *http.Request) {
	creatorID := middleware.GetUserID(r.Context())
	if creatorID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req CreateAnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	title, err := validate.AnchorTitle(req.Title)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	description, err := validate.Description(req.Description)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), creatorID, anchor.CreateInput{
		Title:          title,
		Description:    description,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Altitude:       req.Altitude,
		Visibility:     req.Visibility,
		UnlockRadius:   req.UnlockRadius,
		MaxUnlock:      req.MaxUnlock,
		ActivationTime: req.ActivationTime,
		ExpirationTime: req.ExpirationTime,
		Tags:           req.Tags,
	})
	if err != nil {
		if isValidationError(err) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to create anchor")
		return
	}

	writeJSON(w, r, http.StatusCreated, created)
}

// GetAnchor handles GET /anchors/{id}.
func (h *AnchorHandlers) GetAnchor(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, anchor.ErrAnchorNotFound) {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Anchor not found")
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve anchor")
		return
	}

	writeJSON(w, r, http.StatusOK, a)
}

// UpdateAnchor handles PATCH /anchors/{id} - creator-only partial update.
func (h *AnchorHandlers) UpdateAnchor(w http.ResponseWriter, r *http.Request, id string) {
	callerID := middleware.GetUserID(r.Context())
	if callerID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var patch anchor.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	updated, err := h.service.Update(r.Context(), id, callerID, patch)
	if err != nil {
		switch {
		case errors.Is(err, anchor.ErrAnchorNotFound):
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Anchor not found")
		case errors.Is(err, anchor.ErrNotCreator):
			WriteError(w, r.Context(), http.StatusForbidden, ErrCodeNotCreator, "Only the creator may modify this anchor")
		case isValidationError(err):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to update anchor")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, updated)
}

// DeleteAnchor handles DELETE /anchors/{id} - creator-only hard delete.
func (h *AnchorHandlers) DeleteAnchor(w http.ResponseWriter, r *http.Request, id string) {
	callerID := middleware.GetUserID(r.Context())
	if callerID == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), id, callerID); err != nil {
		switch {
		case errors.Is(err, anchor.ErrAnchorNotFound):
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Anchor not found")
		case errors.Is(err, anchor.ErrNotCreator):
			WriteError(w, r.Context(), http.StatusForbidden, ErrCodeNotCreator, "Only the creator may delete this anchor")
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to delete anchor")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlockAnchor handles POST /anchors/{id}/unlock - runs the gating checks and
// increments the unlock counter on success. Every gate failure is a 403 with
// the gate's reason as the message.
func (h *AnchorHandlers) UnlockAnchor(w http.ResponseWriter, r *http.Request, id string) {
	if middleware.GetUserID(r.Context()) == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	result, err := h.unlock.Unlock(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, anchor.ErrAnchorNotFound):
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "Anchor not found")
		case errors.Is(err, anchor.ErrNotActive),
			errors.Is(err, anchor.ErrNotYetActive),
			errors.Is(err, anchor.ErrExpired),
			errors.Is(err, anchor.ErrMaxUnlocksHit):
			WriteError(w, r.Context(), http.StatusForbidden, ErrCodeUnlockDenied, err.Error())
		default:
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to process unlock attempt")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// Nearby handles GET /anchors/nearby - proximity discovery with filters.
// Query parameters: lat, lng (required), radius_km, visibility, anchor_status,
// sort_by.
func (h *AnchorHandlers) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "lat is required and must be a number")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "lng is required and must be a number")
		return
	}

	var radiusKm float64
	if raw := q.Get("radius_km"); raw != "" {
		radiusKm, err = strconv.ParseFloat(raw, 64)
		if err != nil || radiusKm <= 0 {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "radius_km must be a positive number")
			return
		}
	}

	results, err := h.discovery.Nearby(r.Context(), anchor.NearbyQuery{
		Center:     geo.Point{Lat: lat, Lng: lng},
		RadiusKm:   radiusKm,
		Visibility: q.Get("visibility"),
		Status:     q.Get("anchor_status"),
		SortBy:     q.Get("sort_by"),
	})
	if err != nil {
		if isValidationError(err) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to run discovery query")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"anchors": results})
}

// isValidationError reports whether err is one of the domain validation errors
// that should surface as a 400.
func isValidationError(err error) bool {
	switch {
	case errors.Is(err, anchor.ErrTitleRequired),
		errors.Is(err, anchor.ErrTitleTooLong),
		errors.Is(err, anchor.ErrInvalidVisibility),
		errors.Is(err, anchor.ErrInvalidStatus),
		errors.Is(err, anchor.ErrInvalidRadius),
		errors.Is(err, anchor.ErrInvalidMaxUnlock),
		errors.Is(err, geo.ErrLatitudeOutOfRange),
		errors.Is(err, geo.ErrLongitudeOutOfRange):
		return true
	}
	return false
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
