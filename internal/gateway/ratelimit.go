package gateway

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/podwise/hrap/internal/apperrors"
)

// clientLimiters buckets one token-bucket limiter per client key (bearer
// subject if present, otherwise remote IP), matching §4.11's "configurable
// per-client QPS ceiling."
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	qps      float64
}

func newClientLimiters(qps float64) *clientLimiters {
	return &clientLimiters{limiters: make(map[string]*rate.Limiter), qps: qps}
}

func (c *clientLimiters) forClient(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[key]
	if !ok {
		burst := int(c.qps)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(c.qps), burst)
		c.limiters[key] = l
	}
	return l
}

// rateLimitMiddleware enforces Config.Gateway.QPSCeilingPerClient per
// client key, returning a KindResourceExhausted AppError (429) once the
// bucket is drained.
func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	if g.cfg.QPSCeilingPerClient <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newClientLimiters(g.cfg.QPSCeilingPerClient)

	return func(c *gin.Context) {
		key := bearerUserID(c, g.jwtSecret)
		if key == "" {
			key = c.ClientIP()
		}
		if !limiters.forClient(key).Allow() {
			c.Error(apperrors.NewResourceExhaustedError("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}
