package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[string]*clientLimiter
	every    rate.Limit
	burst    int
	idleTime time.Duration
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limits:   make(map[string]*clientLimiter),
		every:    rate.Limit(requestsPerSecond),
		burst:    max(burst, 1),
		idleTime: 10 * time.Minute,
		now:      time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key and drops limiters
// of clients that have been idle for a while.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, l := range rl.limits {
		if now.Sub(l.lastSeen) > rl.idleTime {
			delete(rl.limits, k)
		}
	}

	if l, ok := rl.limits[key]; ok {
		l.lastSeen = now
		return l.limiter
	}

	l := &clientLimiter{
		limiter:  rate.NewLimiter(rl.every, rl.burst),
		lastSeen: now,
	}
	rl.limits[key] = l
	return l.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).AllowN(rl.now(), 1)
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
