package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// RateLimitMiddleware is a fixed-window limiter keyed by the authenticated user, or the
// client IP before authentication. It fails open when Redis is unreachable.
func RateLimitMiddleware(client redis.Cmdable, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIP(r.RemoteAddr)
			if userID, ok := GetUserID(r.Context()); ok {
				clientID = "user:" + userID
			}
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)

			count, ttl, err := hit(r.Context(), client, key, config.Window)
			if err != nil {
				logger.Error("Rate limiter unavailable, allowing request",
					zap.Error(err),
					zap.String("key", key),
				)
				next.ServeHTTP(w, r)
				return
			}

			limit := int64(config.RequestsPerWindow)
			remaining := max(limit-count, 0)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

			if count > limit {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int64("limit", limit),
					zap.String("path", r.URL.Path),
				)
				retryAfter := int((ttl + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hit counts one request and returns the window count and time left in the window.
// A counter found without an expiry gets one, so a failed EXPIRE cannot pin a client.
func hit(ctx context.Context, client redis.Cmdable, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	ttl := pttl.Val()
	if ttl < 0 {
		if err := client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return incr.Val(), ttl, nil
}

// clientIP strips the port so one client maps to one counter
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
