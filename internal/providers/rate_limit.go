package providers

import (
	"net"
	"net/http"
	"sync"
	"tgmed/internal/structures"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-key limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*limiterEntry
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(conf *structures.Config) *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*limiterEntry),
		rps:    rate.Limit(conf.RateLimit.RPS),
		burst:  conf.RateLimit.Burst,
		now:    time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > idleLimiterTTL {
		for k, e := range rl.limits {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(rl.limits, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.limits[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limits[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// RateLimit keys on the authenticated tgid, or on the client address for
// unauthenticated routes. A nil limiter disables it.
func RateLimit(limiter *RateLimiter, logger Logger, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := TgIDFromContext(r.Context())
		if !ok {
			key = clientIP(r)
		}
		if !limiter.Allow(key) {
			logger.Warnf(TypeAuth, "Rate limit exceeded for %s on %s", key, r.URL.Path)
			w.Header().Set("Retry-After", "1")
			WriteJSONError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewRateLimitProvider returns nil when rate limiting is disabled.
func NewRateLimitProvider(conf *structures.Config) *RateLimiter {
	if !conf.RateLimit.Enabled {
		return nil
	}
	return NewRateLimiter(conf)
}
