package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anchor-collective/anchor/internal/auth"
)

func authTestHandler(t *testing.T, wantUserID string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetUserID(r.Context()); got != wantUserID {
			t.Errorf("user ID in context = %q, want %q", got, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_ValidAccessToken(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	handler := Auth(svc)(authTestHandler(t, "user-123"))

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	svc := auth.NewJWTService("test-secret")

	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Error.Code != "auth_failed" {
		t.Errorf("error code = %q, want auth_failed", body.Error.Code)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no scheme", token},
		{"wrong scheme", "Basic " + token},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuth_RefreshTokenRejected(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateRefreshToken("user-123")
	if err != nil {
		t.Fatalf("GenerateRefreshToken() failed: %v", err)
	}

	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a refresh token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	signer := auth.NewJWTService("secret-a")
	token, err := signer.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	validator := auth.NewJWTService("secret-b")
	handler := Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_RotatedSecret(t *testing.T) {
	oldSvc := auth.NewJWTService("old-secret")
	token, err := oldSvc.GenerateAccessToken("user-456")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	rotated := auth.NewJWTServiceWithRotation("new-secret", "old-secret")
	handler := Auth(rotated)(authTestHandler(t, "user-456"))

	req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status with rotated secret = %d, want 200", rec.Code)
	}
}

func TestAuth_ErrorCodeLogged(t *testing.T) {
	svc := auth.NewJWTService("test-secret")

	// Auth inside Logging so the holder is installed before the rejection
	handler := Logging(NewLogger("test"))(Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/anchors", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
