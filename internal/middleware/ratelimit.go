package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blandib/spiritual-journal-api/internal/apperr"
	"github.com/blandib/spiritual-journal-api/internal/logging"
	"github.com/blandib/spiritual-journal-api/internal/metrics"
	"github.com/blandib/spiritual-journal-api/pkg/clientip"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyPrefix is the Redis key prefix for rate limiting
const RateLimitKeyPrefix = "ratelimit:"

// RedisRateLimiter counts requests per IP in fixed windows stored in Redis,
// so the budget is shared by every instance behind the same Redis.
type RedisRateLimiter struct {
	rdb    *redis.Client
	window time.Duration
	max    int64
}

func NewRedisRateLimiter(rdb *redis.Client, window time.Duration, max int) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb, window: window, max: int64(max)}
}

// Hit counts one request for ip and returns the running total and the
// time left in the current window.
func (l *RedisRateLimiter) Hit(ctx context.Context, ip string) (int64, time.Duration, error) {
	key := RateLimitKeyPrefix + ip
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return count, l.window, fmt.Errorf("expire %s: %w", key, err)
		}
		return count, l.window, nil
	}
	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		return count, l.window, nil
	}
	if ttl < 0 {
		// Key lost its expiry; start a fresh window.
		l.rdb.Expire(ctx, key, l.window)
		ttl = l.window
	}
	return count, ttl, nil
}

// Middleware rejects requests over budget with 429. Redis failures let the
// request through.
func (l *RedisRateLimiter) Middleware(errs Failer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, ttl, err := l.Hit(r.Context(), clientip.RealClientIP(r))
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("rate limit unavailable")
				next.ServeHTTP(w, r)
				return
			}

			remaining := l.max - count
			if remaining < 0 {
				remaining = 0
			}
			retry := int(ttl.Round(time.Second).Seconds())
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.max, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

			if count > l.max {
				metrics.RecordRateLimitRejection("redis")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				errs.Fail(w, r, &apperr.RateLimitError{
					Message:    "Rate limit exceeded. Please try again later.",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
