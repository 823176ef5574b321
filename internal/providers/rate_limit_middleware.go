package providers

import (
	"net"
	"net/http"
	"sync"
	"threadmark/internal/structures"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// LimiterPool keeps one token bucket per client address.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	limit rate.Limit
	burst int
	ttl   time.Duration
}

func NewLimiterPool(rps float64, burst int) *LimiterPool {
	return &LimiterPool{
		m:     make(map[string]*limiterEntry),
		limit: rate.Limit(rps),
		burst: burst,
		ttl:   10 * time.Minute,
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(p.limit, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// Cleanup drops limiters unused for longer than the pool ttl.
func (p *LimiterPool) Cleanup() int {
	cutoff := time.Now().Add(-p.ttl)
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
			removed++
		}
	}
	return removed
}

func (p *LimiterPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware answers 429 once a client exceeds its bucket. A nil pool disables limiting.
func RateLimitMiddleware(pool *LimiterPool, next http.Handler) http.Handler {
	if pool == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !pool.Allow(clientKey(r)) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func NewLimiterPoolProvider(conf *structures.Config) *LimiterPool {
	if !conf.RateLimit.Enabled {
		return nil
	}
	return NewLimiterPool(conf.RateLimit.RPS, conf.RateLimit.Burst)
}
