package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/listingkit/credits-api/internal/pkg/logger"
	"github.com/listingkit/credits-api/internal/pkg/response"
)

// RateLimiter is a fixed-window per-user counter kept in Redis.
type RateLimiter struct {
	redis  *redis.Client
	scope  string
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter for scope. A nil client or a
// non-positive limit allows everything.
func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		scope:  scope,
		limit:  limit,
		window: window,
	}
}

// Allow checks if the caller still has budget in the current window
func (rl *RateLimiter) Allow(r *http.Request, key string) bool {
	if rl == nil || rl.redis == nil || rl.limit <= 0 {
		return true
	}

	ctx := r.Context()
	redisKey := fmt.Sprintf("ratelimit:%s:%s", rl.scope, key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("scope", rl.scope).Msg("Rate limiter unavailable")
		return true // fail open
	}

	if count == 1 {
		rl.redis.Expire(ctx, redisKey, rl.window)
	}

	return count <= int64(rl.limit)
}

// Middleware limits authenticated users by id and anonymous ones by IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := getClientIP(r)
		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			key = userID.String()
		}

		if !rl.Allow(r, key) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			response.TooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
