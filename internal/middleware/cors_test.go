package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_OriginAllowlist(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000", " https://app.example.com ", ""},
		AllowCredentials: true,
	}
	handler := corsHandler(cfg)

	tests := []struct {
		name       string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"allowed after trimming", "https://app.example.com", http.StatusOK, "https://app.example.com"},
		{"unlisted origin rejected", "http://malicious.example", http.StatusForbidden, ""},
		{"same-origin passes untouched", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/anchors/nearby?lat=40&lng=-74", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			// Methods and headers are preflight-only
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "" {
				t.Errorf("unexpected Access-Control-Allow-Methods on actual request: %q", got)
			}
			if tt.wantOrigin != "" && cfg.AllowCredentials {
				if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
					t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
				}
			}
		})
	}
}

func TestCORS_DisabledWithoutOrigins(t *testing.T) {
	handler := corsHandler(CORSConfig{})

	req := httptest.NewRequest(http.MethodGet, "/anchors/a1", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers when disabled, got origin %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for preflight requests")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/anchors/a1/unlock", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Errorf("Access-Control-Max-Age = %q, want 3600", got)
	}
	// Default header allowlist must cover the idempotent unlock retry header
	headers := rec.Header().Get("Access-Control-Allow-Headers")
	if !strings.Contains(headers, "Idempotency-Key") {
		t.Errorf("Access-Control-Allow-Headers = %q, want Idempotency-Key included", headers)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Errorf("Access-Control-Allow-Methods = %q, want PATCH included", got)
	}
}

func TestCORS_PreflightExplicitConfig(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}
	handler := corsHandler(cfg)

	req := httptest.NewRequest(http.MethodOptions, "/anchors", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("Access-Control-Allow-Methods = %q, want \"GET, POST\"", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Access-Control-Allow-Headers = %q, want Content-Type", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want unset", got)
	}
}

// TestCORS_WithRequestID checks ordering in the server chain: the request ID
// is stamped even when CORS rejects the origin.
func TestCORS_WithRequestID(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}}
	handler := RequestID(corsHandler(cfg))

	req := httptest.NewRequest(http.MethodGet, "/anchors/nearby?lat=40&lng=-74", nil)
	req.Header.Set("Origin", "http://malicious.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID even on rejected requests")
	}
}
