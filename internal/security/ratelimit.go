package security

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter grants each client IP a fixed budget of requests per
// window. Expired buckets are swept inline during Allow, so no
// background goroutine is needed.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     int
	window    time.Duration
	lastSweep time.Time
}

type bucket struct {
	remaining int
	resetAt   time.Time
}

// NewRateLimiter allows limit requests per window per client.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     limit,
		window:    window,
		lastSweep: time.Now(),
	}
}

// Allow reports whether a request from ip fits in its current budget.
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweepLocked(now)

	b := rl.buckets[ip]
	if b == nil || now.After(b.resetAt) {
		b = &bucket{remaining: rl.limit, resetAt: now.Add(rl.window)}
		rl.buckets[ip] = b
	}
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return true
}

// sweepLocked drops expired buckets, at most once per few windows.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window*4 {
		return
	}
	for ip, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, ip)
		}
	}
	rl.lastSweep = now
}

// GetClientIP resolves the client address, preferring proxy headers.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		// First hop is the original client.
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
