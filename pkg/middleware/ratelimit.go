package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/miamirp/cityrecords/pkg/httputil"
	"github.com/miamirp/cityrecords/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultLoginRateLimitConfig returns the login throttle: 10 attempts per
// minute per client address with a burst of 5.
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// maxTrackedClients caps the bucket table; the least recently seen client
// is evicted first.
const maxTrackedClients = 10000

// RateLimiter is an in-process token bucket limiter keyed by client
type RateLimiter struct {
	config  *RateLimitConfig
	buckets *lru.Cache[string, *bucket]
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}

	// New only fails for a non-positive size
	buckets, _ := lru.New[string, *bucket](maxTrackedClients)

	return &RateLimiter{
		config:  config,
		buckets: buckets,
		now:     time.Now,
	}
}

func (rl *RateLimiter) limit() rate.Limit {
	if rl.config.WindowDuration <= 0 || rl.config.RequestsPerWindow <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := rl.now()

	rl.mu.Lock()
	b, exists := rl.buckets.Get(key)
	if !exists {
		burst := rl.config.BurstSize
		if burst < 1 {
			burst = 1
		}
		b = &bucket{limiter: rate.NewLimiter(rl.limit(), burst)}
		rl.buckets.Add(key, b)
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for _, key := range rl.buckets.Keys() {
		b, ok := rl.buckets.Peek(key)
		if ok && now.Sub(b.lastSeen) > rl.config.WindowDuration*2 {
			rl.buckets.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.buckets.Len()
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	interval := rl.config.WindowDuration
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// RejectionRecorder is told about every throttled request.
type RejectionRecorder interface {
	RecordLogin(result string)
}

// RateLimitMiddleware throttles requests per client address
type RateLimitMiddleware struct {
	limiter  Limiter
	config   *RateLimitConfig
	recorder RejectionRecorder
}

// NewRateLimitMiddleware creates a new rate limit middleware. recorder may be nil.
func NewRateLimitMiddleware(limiter Limiter, config *RateLimitConfig, recorder RejectionRecorder) *RateLimitMiddleware {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	return &RateLimitMiddleware{
		limiter:  limiter,
		config:   config,
		recorder: recorder,
	}
}

// Handler wraps an HTTP handler with rate limiting. Limiter errors fail open.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + httputil.ClientIP(r)

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
		}

		if !allowed {
			if m.recorder != nil {
				m.recorder.RecordLogin("throttled")
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", m.config.WindowDuration.Seconds()))
			httputil.WriteTooManyRequests(w, "too many attempts, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}
