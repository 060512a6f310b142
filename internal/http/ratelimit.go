package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedIPs caps the number of tracked client IPs to prevent memory
// exhaustion from rotating source addresses.
const maxTrackedIPs = 4096

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles API requests per client IP using token buckets.
// Safe for concurrent use. A limit of 0 disables it.
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipLimiterEntry
	limit   rate.Limit
	burst   int
}

// NewIPRateLimiter creates a limiter allowing rpm requests per minute per IP.
func NewIPRateLimiter(rpm int) *IPRateLimiter {
	l := &IPRateLimiter{entries: make(map[string]*ipLimiterEntry)}
	if rpm > 0 {
		l.limit = rate.Limit(float64(rpm) / 60.0)
		l.burst = rpm
	}
	return l
}

// Enabled reports whether rate limiting is active.
func (l *IPRateLimiter) Enabled() bool { return l.burst > 0 }

// Allow returns true if the IP is within its budget.
func (l *IPRateLimiter) Allow(ip string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// Prune stale entries when approaching the cap
	if len(l.entries) >= maxTrackedIPs {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) >= time.Minute {
				delete(l.entries, k)
			}
		}
		for len(l.entries) >= maxTrackedIPs {
			for k := range l.entries {
				delete(l.entries, k)
				break
			}
		}
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipLimiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Middleware applies the limiter to an API handler.
func (l *IPRateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	if !l.Enabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
