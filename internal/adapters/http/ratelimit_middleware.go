package http

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiterMiddleware creates middleware limiting the request rate per
// client IP with a Redis-backed sliding window. Fail-open: when Redis is
// unreachable, requests pass rather than the whole API going dark.
func RateLimiterMiddleware(rdb *redis.Client, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				logger.Error("failed to determine client IP", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("ratelimit:%s", ip)
			now := time.Now().UnixNano()
			windowStart := now - window.Nanoseconds()

			// Drop entries that slid out of the window, add this request,
			// then count what is left.
			rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
			rdb.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
			count, err := rdb.ZCard(ctx, key).Result()
			if err != nil {
				logger.Error("rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if int(count) > limit {
				writeJSONError(w, "Too Many Requests", http.StatusTooManyRequests, logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
