package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"whatsapp-service/pkg/response"
)

// RateLimiter counts requests per caller in fixed windows. A caller over the
// limit is blocked for blockDuration. Redis failures let traffic through.
func RateLimiter(rdb redis.UniversalClient, limit int, window, blockDuration time.Duration, keyPrefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := keyPrefix + ":" + clientID(r)
			blockKey := key + ":blocked"

			blocked, _ := rdb.Get(ctx, blockKey).Result()
			if blocked == "1" {
				ttl, _ := rdb.TTL(ctx, blockKey).Result()
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests. Try again in "+ttl.String())
				return
			}

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, window)
			}

			if count > int64(limit) {
				rdb.Set(ctx, blockKey, "1", blockDuration)
				w.Header().Set("Retry-After", strconv.Itoa(int(blockDuration.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests. Blocked for "+blockDuration.String())
				return
			}

			ttl, _ := rdb.TTL(ctx, key).Result()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

			next.ServeHTTP(w, r)
		})
	}
}

// clientID prefers the authenticated user and falls back to the first
// forwarded address.
func clientID(r *http.Request) string {
	if uid, ok := GetUserID(r.Context()); ok {
		return "uid:" + uid
	}
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}
	return "ip:" + strings.TrimSpace(strings.Split(ip, ",")[0])
}
