package middleware

import (
	"sync"
	"time"

	"github.com/akolanti/GoRAG/internal/config"
	"golang.org/x/time/rate"
)

const limiterIdleAfter = 10 * time.Minute

var limiterInstance = NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address. Buckets idle for
// limiterIdleAfter are dropped on the next lookup sweep.
type IPRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rateLimit rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		clients:   make(map[string]*clientLimiter),
		rateLimit: r,
		burst:     b,
		now:       time.Now,
	}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastSweep) > limiterIdleAfter {
		for key, c := range i.clients {
			if now.Sub(c.lastSeen) > limiterIdleAfter {
				delete(i.clients, key)
			}
		}
		i.lastSweep = now
	}

	c, exists := i.clients[ip]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(i.rateLimit, i.burst)}
		i.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// TODO: move the buckets to redis once the API runs behind more than one instance
