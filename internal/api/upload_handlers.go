// Package api provides HTTP handlers for upload operations.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/anchor-collective/anchor/internal/middleware"
	"github.com/anchor-collective/anchor/internal/upload"
)

// SignUploadRequest represents the request body for POST /uploads/sign.
type SignUploadRequest struct {
	ContentType string  `json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	AnchorID    *string `json:"anchor_id,omitempty"`
}

// SignUploadResponse represents the response for POST /uploads/sign.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expires_at"` // ISO 8601 format
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	uploadService *upload.Service
}

// NewUploadHandlers creates a new UploadHandlers instance.
func NewUploadHandlers(uploadService *upload.Service) *UploadHandlers {
	return &UploadHandlers{
		uploadService: uploadService,
	}
}

// Register wires the upload routes onto the mux.
func (h *UploadHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/uploads/sign", h.SignUpload)
}

// SignUpload handles POST /uploads/sign - generates a pre-signed PUT URL for
// direct upload of anchor media.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if middleware.GetUserID(r.Context()) == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req SignUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.ContentType == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "content_type is required")
		return
	}

	if req.SizeBytes <= 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "size_bytes must be positive")
		return
	}

	signedURL, err := h.uploadService.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		AnchorID:    req.AnchorID,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeUnsupportedType,
				"Unsupported content type. Allowed types: image/jpeg, image/png, audio/mpeg, audio/wav")
		case errors.Is(err, upload.ErrFileTooLarge):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "File size exceeds maximum allowed")
		case errors.Is(err, upload.ErrInvalidAnchorID):
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Invalid anchor ID")
		default:
			slog.ErrorContext(r.Context(), "failed to generate signed URL", "error", err)
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to generate signed URL")
		}
		return
	}

	response := SignUploadResponse{
		URL:       signedURL.URL,
		Key:       signedURL.Key,
		ExpiresAt: signedURL.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"), // ISO 8601
	}

	writeJSON(w, r, http.StatusOK, response)
}
