package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const authSecret = "test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func decodeErrorResponse(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestProperty_CatalogWritesRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("writes without authorization header are rejected", prop.ForAll(
		func(id string, method string) bool {
			handler := AuthMiddleware(authSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(method, "/products/"+id, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.Identifier(),
		gen.OneConstOf(http.MethodPost, http.MethodPut, http.MethodDelete),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ValidTokensCarryPrincipal(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("principal in context matches the token claims", prop.ForAll(
		func(userID string, role string) bool {
			token := signedToken(t, authSecret, jwt.MapClaims{
				"user_id": userID,
				"role":    role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			})

			var got Principal
			handler := AuthMiddleware(authSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = PrincipalFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPut, "/products/categories/1", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusOK && got == Principal{UserID: userID, Role: role}
		},
		gen.Identifier(),
		gen.OneConstOf("user", RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_GarbageTokensRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("arbitrary bearer values are rejected", prop.ForAll(
		func(raw string) bool {
			handler := AuthMiddleware(authSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(http.MethodDelete, "/products/1", nil)
			req.Header.Set("Authorization", "Bearer "+raw)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()
	valid := signedToken(t, authSecret, jwt.MapClaims{"user_id": "u1", "role": "admin", "exp": future})

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "missing header",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "missing authorization header",
		},
		{
			name:        "basic scheme",
			header:      "Basic dXNlcjpwYXNz",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "invalid authorization header format",
		},
		{
			name:        "bearer without token",
			header:      "Bearer ",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "invalid authorization header format",
		},
		{
			name:       "lower case scheme",
			header:     "bearer " + valid,
			wantStatus: http.StatusOK,
		},
		{
			name:        "expired",
			header:      "Bearer " + signedToken(t, authSecret, jwt.MapClaims{"user_id": "u1", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "token expired",
		},
		{
			name:        "no expiry",
			header:      "Bearer " + signedToken(t, authSecret, jwt.MapClaims{"user_id": "u1", "role": "admin"}),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "invalid token",
		},
		{
			name:        "missing user id",
			header:      "Bearer " + signedToken(t, authSecret, jwt.MapClaims{"role": "admin", "exp": future}),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "invalid token claims",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(authSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, decodeErrorResponse(t, w).Message)
			}
		})
	}
}
