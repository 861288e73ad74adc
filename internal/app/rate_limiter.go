package app

import (
	"sync"

	"github.com/GKAANU/Sonox-panel/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per connection identity.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.ConnectionID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perSecond events with bursts of up to burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := rate.Limit(perSecond)
	if perSecond <= 0 {
		l = rate.Inf
	}
	return &RateLimiter{
		limiters: make(map[domain.ConnectionID]*rate.Limiter),
		limit:    l,
		burst:    burst,
	}
}

func (rl *RateLimiter) Allow(id domain.ConnectionID) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[id] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

func (rl *RateLimiter) Forget(id domain.ConnectionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, id)
}
