package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// UserRateLimiter keeps one token bucket per authenticated uid.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewUserRateLimiter(perSecond float64, burst int) *UserRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UserRateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *UserRateLimiter) Allow(uid string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	ul, ok := l.limiters[uid]
	if !ok {
		ul = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
		l.limiters[uid] = ul
		if len(l.limiters)%256 == 0 {
			l.evict(now)
		}
	}
	ul.lastSeen = now
	return ul.lim.AllowN(now, 1)
}

func (l *UserRateLimiter) evict(now time.Time) {
	for uid, ul := range l.limiters {
		if now.Sub(ul.lastSeen) > limiterIdleTTL {
			delete(l.limiters, uid)
		}
	}
}

// Middleware must run after RequireAuth.
func (l *UserRateLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, _ := c.Get("uid").(string)
		if uid == "" {
			uid = c.RealIP()
		}
		if !l.Allow(uid) {
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"error": map[string]string{"code": "rate_limited", "message": "too many messages, slow down"},
			})
		}
		return next(c)
	}
}
