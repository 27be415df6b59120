package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// CORSMiddleware lets the catalog front end call the API. Development allows any origin.
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	if isDevelopment || len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{
			"X-Request-Id",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
		},
		// bearer tokens only, no cookies
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// DefaultMiddlewareStack is applied to every route. Access logging sits inside
// RequestID and RealIP so entries carry both, and outside recovery so panics log as 500s.
func DefaultMiddlewareStack(logger *zap.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		LoggingMiddleware(logger),
		ErrorHandlingMiddleware(logger),
		middleware.Compress(5, "application/json"),
	}
}
