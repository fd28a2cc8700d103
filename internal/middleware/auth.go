// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/anchor-collective/anchor/internal/auth"
)

// Auth returns a middleware that authenticates requests using Bearer tokens.
// It validates the token with the given JWT service, rejects refresh tokens
// (only access tokens grant API access), and stores the authenticated user ID
// in the request context for downstream handlers.
//
// Unauthenticated requests receive a 401 with an auth_failed error body.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, r, "missing Authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "Authorization header must use the Bearer scheme")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					writeAuthError(w, r, "token has expired")
					return
				}
				writeAuthError(w, r, "invalid token")
				return
			}

			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "refresh tokens cannot be used for API access")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError reports the auth_failed code to the logging middleware and
// writes a 401 JSON error response.
func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	SetErrorCode(r.Context(), "auth_failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	io.WriteString(w, `{"error":{"code":"auth_failed","message":"`+message+`"}}`)
}
