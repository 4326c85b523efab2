package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"shareit/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter держит token bucket на каждого клиента.
type rateLimiter struct {
	limiters   sync.Map
	cfg        config.APIRateLimitConfig
	userHeader string
}

func newRateLimiter(cfg config.APIRateLimitConfig, userHeader string) *rateLimiter {
	return &rateLimiter{
		cfg:        cfg,
		userHeader: userHeader,
	}
}

func (l *rateLimiter) enabled() bool {
	return l.cfg.RPS > 0
}

func (l *rateLimiter) Allow(r *http.Request) bool {
	if !l.enabled() {
		return true
	}
	return l.getLimiter(l.clientKey(r)).Allow()
}

// clientKey: id пользователя из заголовка, иначе адрес клиента
func (l *rateLimiter) clientKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(l.userHeader)); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return "ip:" + host
	}
	return "unknown"
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}
