package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter enforces a global request-gap limiter plus a per-host limiter,
// the token-bucket idiom the teacher's scheduler.HostRateLimiter hand-rolled
// (TokenBucket/lastAccess map); this is the same shape built on
// golang.org/x/time/rate, the dependency the teacher declared but never
// imported.
type hostLimiter struct {
	global *rate.Limiter

	mu         sync.Mutex
	perHost    map[string]*rate.Limiter
	perHostRPS rate.Limit
}

func newHostLimiter(requestGap time.Duration, perHostRPS float64) *hostLimiter {
	if requestGap <= 0 {
		requestGap = 600 * time.Millisecond
	}
	if perHostRPS <= 0 {
		perHostRPS = 2
	}
	return &hostLimiter{
		global:     rate.NewLimiter(rate.Every(requestGap), 1),
		perHost:    make(map[string]*rate.Limiter),
		perHostRPS: rate.Limit(perHostRPS),
	}
}

func (h *hostLimiter) wait(ctx context.Context, host string) error {
	if err := h.global.Wait(ctx); err != nil {
		return err
	}
	return h.forHost(host).Wait(ctx)
}

func (h *hostLimiter) forHost(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.perHost[host]
	if !ok {
		l = rate.NewLimiter(h.perHostRPS, 1)
		h.perHost[host] = l
	}
	return l
}
