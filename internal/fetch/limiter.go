package fetch

import (
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiters hands out one token bucket per hostname so that
// hammering one site never slows another down.
type hostLimiters struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	m     map[string]*rate.Limiter
}

func newHostLimiters(rps float64, burst int) *hostLimiters {
	return &hostLimiters{
		rps:   rate.Limit(rps),
		burst: burst,
		m:     make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiters) get(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	lim, ok := h.m[host]
	if !ok {
		lim = rate.NewLimiter(h.rps, h.burst)
		h.m[host] = lim
	}

	return lim
}
