package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateKeyPrefix = "ratelimit:"

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
}

// rateLimiter counts requests in Redis so every replica shares one budget
// per key. Each fixed window has its own counter; the previous window is
// weighted by how much of it the sliding window still covers.
type rateLimiter struct {
	rdb redis.Cmdable
	cfg RateLimitConfig
	now func() time.Time
}

func newRateLimiter(rdb redis.Cmdable, cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientAddr
	}
	return &rateLimiter{rdb: rdb, cfg: cfg, now: time.Now}
}

func rateKey(key string, windowStart time.Time) string {
	return rateKeyPrefix + key + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

// allow counts the request identified by key and reports whether it is within
// the limit, the remaining budget and the end of the current window.
// Rejected requests are counted too.
func (rl *rateLimiter) allow(ctx context.Context, key string) (remaining int, resetAt time.Time, allowed bool, err error) {
	now := rl.now()
	start := now.Truncate(rl.cfg.Window)
	resetAt = start.Add(rl.cfg.Window)
	currKey := rateKey(key, start)

	var (
		curr *redis.IntCmd
		prev *redis.StringCmd
	)
	_, err = rl.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		curr = p.Incr(ctx, currKey)
		p.PExpire(ctx, currKey, 2*rl.cfg.Window)
		prev = p.Get(ctx, rateKey(key, start.Add(-rl.cfg.Window)))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, resetAt, true, errors.Wrap(err, "count request")
	}
	prevCount, err := prev.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, resetAt, true, errors.Wrap(err, "read previous window")
	}

	overlap := 1 - float64(now.Sub(start))/float64(rl.cfg.Window)
	effective := float64(prevCount)*overlap + float64(curr.Val())
	if effective > float64(rl.cfg.Max) {
		return 0, resetAt, false, nil
	}
	return max(int(float64(rl.cfg.Max)-effective), 0), resetAt, true, nil
}

// RateLimit returns a middleware that enforces a per-key sliding window rate
// limit backed by Redis. Rejected requests get 429 with
// {"ok":false,"error":"rate_limited"}. Every counted response carries the
// X-RateLimit-* headers. When Redis is unavailable requests pass unlimited.
func RateLimit(rdb redis.Cmdable, cfg RateLimitConfig) Middleware {
	return rateLimitMiddleware(newRateLimiter(rdb, cfg))
}

func rateLimitMiddleware(rl *rateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			remaining, resetAt, allowed, err := rl.allow(ctx, rl.cfg.KeyFunc(r))
			if err != nil {
				zctx.From(ctx).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				retryAfter := max(resetAt.Sub(rl.now()), 0)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddr extracts the client IP from the request, checking
// X-Forwarded-For first, then X-Real-IP, then falling back to RemoteAddr.
func ClientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may contain a comma-separated list; use the first.
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
