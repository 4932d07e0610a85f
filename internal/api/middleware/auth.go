package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hugh/taskhub/internal/auth"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	OrgIDKey     contextKey = "org_id"
	UserEmailKey contextKey = "user_email"
	UserRoleKey  contextKey = "user_role"
)

// Auth validates the bearer token and stores its claims on the request context.
func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				msg := "Unauthorized"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Token expired"
				}
				writeError(w, http.StatusUnauthorized, msg)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, OrgIDKey, claims.OrgID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uint {
	if id, ok := ctx.Value(UserIDKey).(uint); ok {
		return id
	}
	return 0
}

// GetOrgID returns the organization recorded on the user at login. It is
// informational only; authorization always goes through memberships.
func GetOrgID(ctx context.Context) uint {
	if id, ok := ctx.Value(OrgIDKey).(uint); ok {
		return id
	}
	return 0
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}
