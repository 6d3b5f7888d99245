package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client fixed window limiter.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per window.
	Requests int
	// Window is the fixed window length.
	Window time.Duration
}

type rateWindow struct {
	start time.Time
	count int
}

// RateLimiter tracks request counts per client within a fixed window.
// Clients are keyed by remote IP, falling back to the whole RemoteAddr
// when it cannot be split.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*rateWindow
}

// NewRateLimiter creates a limiter and starts a cleanup goroutine that
// drops stale windows until ctx is done.
func NewRateLimiter(ctx context.Context, cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*rateWindow),
	}
	go l.cleanup(ctx)
	return l
}

func (l *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := l.now().Add(-2 * l.cfg.Window)
			l.mu.Lock()
			for key, w := range l.windows {
				if w.start.Before(cutoff) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Allow records a request for key and reports whether it fits the window,
// together with the remaining allowance and the window reset time.
func (l *RateLimiter) Allow(key string) (ok bool, remaining int, reset time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.cfg.Window {
		w = &rateWindow{start: now}
		l.windows[key] = w
	}
	reset = w.start.Add(l.cfg.Window)
	if w.count >= l.cfg.Requests {
		return false, 0, reset
	}
	w.count++
	return true, l.cfg.Requests - w.count, reset
}

// Middleware enforces the limit, answering 429 with rate limit headers
// when a client exhausts its window.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		ok, remaining, reset := l.Allow(key)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Requests))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			h.Set("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
