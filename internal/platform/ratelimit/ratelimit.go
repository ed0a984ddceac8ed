// Package ratelimit throttles requests per client with an in-memory sliding
// window. It is not distributed: each replica counts on its own.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"decentrakyc/pkg/platform/httputil"
	"decentrakyc/pkg/requestcontext"
)

// sweepThreshold bounds how many keys accumulate before idle ones are evicted.
const sweepThreshold = 10000

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// SlidingWindow allows limit requests per key within any window-long span.
type SlidingWindow struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string][]time.Time
}

type Option func(*SlidingWindow)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *SlidingWindow) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSlidingWindow(limit int, window time.Duration, opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records a request for key if it fits in the window.
func (s *SlidingWindow) Allow(_ context.Context, key string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.buckets) >= sweepThreshold {
		for k := range s.buckets {
			s.prune(k, now)
		}
	}
	timestamps := s.prune(key, now)
	if len(timestamps) >= s.limit {
		resetAt := timestamps[0].Add(s.window)
		return Result{
			Limit:      s.limit,
			ResetAt:    resetAt,
			RetryAfter: int(math.Ceil(resetAt.Sub(now).Seconds())),
		}
	}

	timestamps = append(timestamps, now)
	s.buckets[key] = timestamps
	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(timestamps),
		ResetAt:   timestamps[0].Add(s.window),
	}
}

// prune drops timestamps older than the window. Must hold s.mu.
func (s *SlidingWindow) prune(key string, now time.Time) []time.Time {
	timestamps := s.buckets[key]
	cutoff := now.Add(-s.window)
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}
	timestamps = timestamps[i:]
	if len(timestamps) == 0 {
		delete(s.buckets, key)
	}
	return timestamps
}

// Limiter checks whether key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) Result
}

// ByClientIP limits requests per client IP. It expects the client metadata
// middleware to have run.
func ByClientIP(limiter Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result := limiter.Allow(ctx, ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				logger.WarnContext(ctx, "rate limit exceeded",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":             "rate_limit_exceeded",
					"error_description": "Too many requests. Please try again later.",
					"retry_after":       result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
