package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by an arbitrary string,
// usually a client IP or user id.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
	done    chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string][]time.Time),
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Stop ends the background sweeper.
func (rl *RateLimiter) Stop() {
	select {
	case <-rl.done:
	default:
		close(rl.done)
	}
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.window)
			for key, hits := range rl.clients {
				if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Allow records a hit for key and reports whether it fits in the window,
// along with the remaining allowance and when the oldest hit ages out.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	hits := rl.clients[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= rl.limit {
		rl.clients[key] = hits
		return false, 0, hits[0].Add(rl.window)
	}

	hits = append(hits, now)
	rl.clients[key] = hits
	return true, rl.limit - len(hits), hits[0].Add(rl.window)
}

func (rl *RateLimiter) handler(keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := rl.Allow(keyFn(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				wait := int(reset.Sub(rl.now()).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(wait))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per client IP.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return rl.handler(clientIP)
}

// RateLimitByUser limits requests per authenticated user, falling back to
// the client IP. Mount it after Auth.
func RateLimitByUser(rl *RateLimiter) func(http.Handler) http.Handler {
	return rl.handler(func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != 0 {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
		return clientIP(r)
	})
}

// clientIP prefers proxy headers, then the connection address without port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
