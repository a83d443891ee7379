package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// callerLimiter enforces a per-caller request-rate budget at the transport
// edge, independent of any per-organisation policy enforced further down in
// the exchange orchestrator.
type callerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newCallerLimiter(r rate.Limit, burst int) *callerLimiter {
	return &callerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (c *callerLimiter) forKey(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(c.rate, c.burst)
		c.limiters[key] = l
	}
	return l
}

func rateLimitKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// withRateLimit wraps next with a token-bucket limiter keyed by remote
// address, rejecting requests that exceed rate with 429 once their bucket
// is empty.
func withRateLimit(next http.Handler, r rate.Limit, burst int) http.Handler {
	cl := newCallerLimiter(r, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		limiter := cl.forKey(rateLimitKey(req))
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}
