package middleware

import (
	"net/http"
	"slices"

	"go.uber.org/zap"
)

// RoleAdmin is the role allowed to modify the catalog
const RoleAdmin = "admin"

// RequireAdmin guards catalog writes
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{RoleAdmin}, logger)
}

// RequireRole answers 403 unless the authenticated principal holds one of roles.
// It must run after AuthMiddleware.
func RequireRole(roles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				logger.Warn("Role check without authenticated principal", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !slices.Contains(roles, principal.Role) {
				logger.Warn("Catalog write denied",
					zap.String("user_id", principal.UserID),
					zap.String("role", principal.Role),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
