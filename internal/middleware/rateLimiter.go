package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/akolanti/JournalRAG/internal/config"
	"golang.org/x/time/rate"
)

// clients idle this long lose their bucket; a returning client starts with a full burst
const limiterIdleEviction = 10 * time.Minute

var limiterInstance = NewIPRateLimiter(rate.Limit(config.RATE_LIMIT_PER_SECOND), config.BURST_RATE_LIMIT_PER_SECOND)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type IPRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rateLimit rate.Limit
	burstRate int
	lastSweep time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{clients: make(map[string]*clientLimiter), rateLimit: r, burstRate: b}
}

// Allow spends cost tokens from ip's bucket. Costs above the burst are capped so an
// expensive route can still be reached at all.
func (i *IPRateLimiter) Allow(ip string, cost int, now time.Time) bool {
	if cost > i.burstRate {
		cost = i.burstRate
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if now.Sub(i.lastSweep) > limiterIdleEviction {
		i.sweep(now)
	}
	c, exists := i.clients[ip]
	if !exists {
		c = &clientLimiter{limiter: rate.NewLimiter(i.rateLimit, i.burstRate)}
		i.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, cost)
}

func (i *IPRateLimiter) sweep(now time.Time) {
	for ip, c := range i.clients {
		if now.Sub(c.lastSeen) > limiterIdleEviction {
			delete(i.clients, ip)
		}
	}
	i.lastSweep = now
}

func (i *IPRateLimiter) tracked() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clients)
}

// requestCost charges the routes that call embedding or generation providers double.
func requestCost(r *http.Request) int {
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		return 2
	}
	return 1
}

//TODO: move the per-ip limiters to redis once more than one api instance runs
