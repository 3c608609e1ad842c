package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/auditbench/auditbench/internal/auth"
	"github.com/auditbench/auditbench/internal/database/models"
)

type contextKey string

const userKey contextKey = "current_user"

// Auth verifies the bearer access token, loads the account, and rejects
// deactivated users. The loaded *models.User lands in the request
// context. A failed last-login touch never fails the request.
func Auth(tokens auth.TokenService, users auth.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := resolveUser(r, tokens, users, logger)
			if !ok {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves the user when a valid token is present and
// continues anonymously otherwise. Invalid or expired tokens do not
// fail the request; the handler simply sees no user.
func OptionalAuth(tokens auth.TokenService, users auth.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := resolveUser(r, tokens, users, logger); ok {
				ctx := context.WithValue(r.Context(), userKey, user)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin sits behind Auth and gates on the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r.Context())
		if user == nil {
			writeUnauthorized(w)
			return
		}
		if !user.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentUser returns the authenticated user, or nil for anonymous
// requests behind OptionalAuth.
func CurrentUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(userKey).(*models.User); ok {
		return user
	}
	return nil
}

// WithUser is for tests that need an authenticated context without the
// full middleware stack.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func resolveUser(r *http.Request, tokens auth.TokenService, users auth.Authenticator, logger *slog.Logger) (*models.User, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return nil, false
	}

	claims, err := tokens.Verify(token, auth.TokenTypeAccess)
	if err != nil {
		return nil, false
	}

	user, err := users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		return nil, false
	}
	if !user.IsActive {
		return nil, false
	}

	// Availability over audit completeness: a failed last-login write
	// is logged, never fatal to the request.
	if err := users.TouchLastLogin(r.Context(), user.ID); err != nil {
		logger.Warn("last-login update failed", "user_id", user.ID, "error", err)
	}

	return user, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
}
