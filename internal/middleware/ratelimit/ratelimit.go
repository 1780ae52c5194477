// Package ratelimit throttles write requests with a fixed one minute
// window per client IP.
package ratelimit

import (
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	applog "ausencias/internal/log"
)

const (
	window     = time.Minute
	staleAfter = 10 * time.Minute
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration

	// Methods restricts limiting to these HTTP methods; empty limits all.
	Methods []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// bucket counts one client's requests in its current window.
type bucket struct {
	start time.Time
	seen  time.Time
	count int
}

// Limiter throttles requests per client IP.
type Limiter struct {
	requestsPerMinute int
	methods           []string
	logger            *applog.Logger
	now               func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	allowed  atomic.Int64
	rejected atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts dropping idle clients every
// CleanupInterval until Stop is called.
func NewLimiter(config Config, logger *applog.Logger) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	rl := &Limiter{
		requestsPerMinute: config.RequestsPerMinute,
		methods:           config.Methods,
		logger:            logger.WithComponent(applog.ComponentRateLimit),
		now:               time.Now,
		buckets:           make(map[string]*bucket),
		done:              make(chan struct{}),
	}
	go rl.sweep(config.CleanupInterval)
	return rl
}

// Allow records a request from clientIP and reports whether it fits in
// the client's window.
func (rl *Limiter) Allow(clientIP string) bool {
	ok, _ := rl.take(clientIP)
	return ok
}

// take is Allow plus the time left until the client's window resets.
func (rl *Limiter) take(clientIP string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.buckets[clientIP]
	if b == nil || now.Sub(b.start) >= window {
		b = &bucket{start: now}
		rl.buckets[clientIP] = b
	}
	b.seen = now

	if b.count >= rl.requestsPerMinute {
		rl.rejected.Add(1)
		return false, window - now.Sub(b.start)
	}
	b.count++
	rl.allowed.Add(1)
	return true, 0
}

func (rl *Limiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanupStaleEntries()
		}
	}
}

// cleanupStaleEntries drops clients idle for longer than staleAfter and
// returns how many were removed.
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	cutoff := rl.now().Add(-staleAfter)
	before := len(rl.buckets)
	maps.DeleteFunc(rl.buckets, func(_ string, b *bucket) bool { return b.seen.Before(cutoff) })
	removed := before - len(rl.buckets)
	rl.mu.Unlock()

	if removed > 0 {
		rl.logger.Debug("Removed stale rate limit entries", applog.FieldCount, removed)
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Metrics for monitoring rate limit behaviour
type Metrics struct {
	Allowed     int64
	Rejected    int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		Allowed:     rl.allowed.Load(),
		Rejected:    rl.rejected.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware limits requests whose method is covered by the limiter.
// Rejected requests get a Retry-After header and are passed to onLimit,
// or answered with a plain 429 when onLimit is nil.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	if onLimit == nil {
		onLimit = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(rl.methods) > 0 && !slices.Contains(rl.methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := extractIP(r)
			ok, wait := rl.take(clientIP)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(wait)))
			onLimit(w, r)
		})
	}
}

// retrySeconds rounds wait up to whole seconds, never below one.
func retrySeconds(wait time.Duration) int {
	return max(int((wait+time.Second-1)/time.Second), 1)
}
