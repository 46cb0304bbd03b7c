package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zhouzirui/z-board/backend/pkg/utils"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per caller. The key is the principal
// when present, otherwise the client IP. Idle buckets are evicted after ttl.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	m       map[string]*limiterEntry
	lastGC  time.Time
	gcEvery time.Duration
}

// NewRateLimiter returns nil when rps <= 0, which Middleware treats as disabled.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     10 * time.Minute,
		now:     time.Now,
		m:       make(map[string]*limiterEntry),
		gcEvery: time.Minute,
	}
}

// Allow reports whether key may proceed right now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) >= l.gcEvery {
		cutoff := now.Add(-l.ttl)
		for k, e := range l.m {
			if e.lastSeen.Before(cutoff) {
				delete(l.m, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(l.rps, l.burst)}
		l.m[key] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}

// Size returns how many buckets are tracked.
func (l *RateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Middleware 超出配额时返回 429。
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(limiterKey(r)) {
			w.Header().Set("Retry-After", "1")
			utils.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limiterKey(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return "principal:" + string(p)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
