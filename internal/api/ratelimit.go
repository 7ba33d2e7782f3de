package api

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	mu             sync.Mutex
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
}

func newTokenBucket(capacity, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:         capacity,
		capacity:       capacity,
		refillRate:     refillRate,
		lastRefillTime: now,
	}
}

// refill must be called with tb.mu held. A clock reading older than the
// last refill adds nothing.
func (tb *tokenBucket) refill(now time.Time) {
	elapsed := max(0, now.Sub(tb.lastRefillTime).Seconds())
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	if now.After(tb.lastRefillTime) {
		tb.lastRefillTime = now
	}
}

// decision is the outcome of one take.
type decision struct {
	allowed   bool
	remaining int
	// full is when the bucket is back at capacity.
	full time.Time
	// retryAfter is how long until the next token; zero when allowed.
	retryAfter time.Duration
}

// take refills the bucket and consumes a token if one is available.
func (tb *tokenBucket) take(now time.Time) decision {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	d := decision{allowed: tb.tokens >= 1, full: now}
	if d.allowed {
		tb.tokens--
	}
	d.remaining = int(tb.tokens)

	if tb.refillRate > 0 {
		if tb.tokens < tb.capacity {
			d.full = now.Add(seconds((tb.capacity - tb.tokens) / tb.refillRate))
		}
		if !d.allowed {
			d.retryAfter = seconds((1 - tb.tokens) / tb.refillRate)
		}
	}
	return d
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (tb *tokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefillTime
}

// RateLimiter manages per-IP rate limiting.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*tokenBucket
	config     RateLimiterConfig
	now        func() time.Time
	cleanupTTL time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
// Call Close to stop it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := newRateLimiter(config, time.Now)
	go rl.cleanupLoop(time.Minute)
	return rl
}

func newRateLimiter(config RateLimiterConfig, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		config:     config,
		now:        now,
		cleanupTTL: 5 * time.Minute,
		stop:       make(chan struct{}),
	}
}

// bucket returns the bucket for ip, creating a full one stamped with now.
func (rl *RateLimiter) bucket(ip string, now time.Time) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		refillRate := float64(rl.config.RequestsPerMinute) / 60.0
		b = newTokenBucket(float64(rl.config.BurstSize), refillRate, now)
		rl.buckets[ip] = b
	}
	return b
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes buckets idle for longer than cleanupTTL.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, b := range rl.buckets {
		if now.Sub(b.idleSince()) > rl.cleanupTTL {
			delete(rl.buckets, ip)
		}
	}
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow checks if a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	now := rl.now()
	return rl.bucket(ip, now).take(now).allowed
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		d := rl.bucket(clientIP(r), now).take(now)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.full.Unix(), 10))

		if !d.allowed {
			retryAfter := max(1, int(math.Ceil(d.retryAfter.Seconds())))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			respondError(w, http.StatusTooManyRequests, CodeRateLimited,
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP address from the request, preferring the
// leftmost valid X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) != nil {
		return ip
	}
	return "unknown"
}
