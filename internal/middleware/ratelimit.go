package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/diploma-checker-api/pkg/errors"
	"github.com/noah-isme/diploma-checker-api/pkg/response"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter grants each client limit requests per window as a token bucket.
// Idle buckets are evicted once they have been unused for a full window.
type RateLimiter struct {
	every time.Duration
	limit int
	idle  time.Duration
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// NewRateLimiter builds a limiter allowing limit requests per window. A non-positive
// limit disables limiting.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		limit:    limit,
		idle:     window,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	if limit > 0 {
		rl.every = window / time.Duration(limit)
	}
	return rl
}

// ClientKey prefers the authenticated username and falls back to the client IP.
func ClientKey(c *gin.Context) string {
	if claims := Claims(c); claims != nil && claims.Username != "" {
		return "user:" + claims.Username
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= 1000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.idle {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rate.Every(rl.every), rl.limit)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects requests over budget with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		lim := rl.limiterFor(ClientKey(c))
		now := rl.now()
		reservation := lim.ReserveN(now, 1)
		if reservation.OK() {
			delay := reservation.DelayFrom(now)
			if delay == 0 {
				c.Next()
				return
			}
			reservation.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		}

		response.Error(c, appErrors.ErrTooManyRequests)
		c.Abort()
	}
}
