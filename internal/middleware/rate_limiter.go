package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/praxisdev/identity-api/internal/handler"
)

const (
	limiterIdleExpiry     = 10 * time.Minute
	limiterSweepInterval  = 5 * time.Minute
	defaultRequestsPerSec = 10
	defaultBurst          = 20
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:  defaultRequestsPerSec,
		Burst: defaultBurst,
	}
}

// RateLimiter keeps one token bucket per client IP so a single scripted
// caller cannot starve everyone else. Idle buckets age out of the cache.
type RateLimiter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = defaultRequestsPerSec
	}
	if config.Burst <= 0 {
		config.Burst = defaultBurst
	}
	return &RateLimiter{
		limiters: cache.New(limiterIdleExpiry, limiterSweepInterval),
		rate:     config.Rate,
		burst:    config.Burst,
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := rl.limiters.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	// Two concurrent first requests may each build a bucket; the loser of
	// the Set just grants one extra token, which is harmless.
	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters.Set(ip, limiter, cache.DefaultExpiration)
	return limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
