package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/aaronlmathis/powerplot/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBurst caps how many requests a client may make back to back
const maxBurst = 10

// clientLimiter is a per-client token bucket and when it was last used
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimit returns a middleware that allows each client requestsPerMinute
// requests. Zero disables limiting.
func (s *Server) rateLimit(endpoint string, requestsPerMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if requestsPerMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientIP(r)
			limiter := s.getRateLimiter(clientID, requestsPerMinute)

			if !limiter.Allow() {
				s.logger.Warn("Rate limit exceeded",
					zap.String("client", clientID),
					zap.String("path", r.URL.Path))
				metrics.RecordRateLimitedRequest(endpoint)
				w.Header().Set("Retry-After", "60")
				s.sanitizer.Respond(w, "Too many requests. Please wait a moment and try again.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getRateLimiter gets or creates a rate limiter for a client
func (s *Server) getRateLimiter(clientID string, requestsPerMinute int) *rate.Limiter {
	s.rateMutex.Lock()
	defer s.rateMutex.Unlock()

	if entry, exists := s.rateLimits[clientID]; exists {
		entry.lastSeen = time.Now()
		return entry.limiter
	}

	burst := requestsPerMinute
	if burst > maxBurst {
		burst = maxBurst
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	s.rateLimits[clientID] = &clientLimiter{limiter: limiter, lastSeen: time.Now()}

	return limiter
}

// cleanupRateLimiters periodically drops limiters for clients that have gone quiet
func (s *Server) cleanupRateLimiters(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneRateLimiters(time.Now().Add(-interval))
		}
	}
}

func (s *Server) pruneRateLimiters(cutoff time.Time) int {
	s.rateMutex.Lock()
	defer s.rateMutex.Unlock()

	removed := 0
	for clientID, entry := range s.rateLimits {
		if entry.lastSeen.Before(cutoff) {
			delete(s.rateLimits, clientID)
			removed++
		}
	}
	return removed
}

// clientIP strips the port from RemoteAddr, which RealIP may already have replaced
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
