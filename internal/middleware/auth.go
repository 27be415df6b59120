package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const principalKey contextKey = "principal"

// Claims is the token payload the catalog accepts. Tokens are minted by the
// identity service; this service only verifies them.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller
type Principal struct {
	UserID string
	Role   string
}

var errMalformedClaims = errors.New("token is missing user_id or role")

// AuthMiddleware verifies HMAC-signed bearer tokens and stores the caller's
// Principal in the request context.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return []byte(jwtSecret), nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				logger.Debug("Rejected authorization header", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			principal, err := parsePrincipal(parser, raw, keyFunc)
			if err != nil {
				logger.Debug("Token validation failed",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				case errors.Is(err, errMalformedClaims):
					RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				default:
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}
	return strings.TrimSpace(token), nil
}

func parsePrincipal(parser *jwt.Parser, raw string, keyFunc jwt.Keyfunc) (Principal, error) {
	var claims Claims
	if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
		return Principal{}, err
	}
	if claims.UserID == "" || claims.Role == "" {
		return Principal{}, errMalformedClaims
	}
	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated caller, if any
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	return p.UserID, ok
}
