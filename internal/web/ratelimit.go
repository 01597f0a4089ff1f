package web

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"meetcal/internal/config"
	appLog "meetcal/internal/log"
)

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	every rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newClientLimiter(cfg *config.RateLimitConfig) *clientLimiter {
	if cfg == nil || cfg.PerMinute <= 0 {
		return nil
	}
	return &clientLimiter{
		every:    rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst:    max(cfg.Burst, 1),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *clientLimiter) get(client string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[client]
	if !ok {
		l = rate.NewLimiter(c.every, c.burst)
		c.limiters[client] = l
	}
	return l
}

// middleware throttles POST requests; reads are never limited.
func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		client := clientAddr(r)
		if !c.get(client).Allow() {
			appLog.Warn("rate limit exceeded", "client", client, "path", r.URL.Path)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
