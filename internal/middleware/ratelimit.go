package middleware

import (
	"fmt"
	"net/http"

	"github.com/mosshollow/questwick/internal/auth"
	"github.com/mosshollow/questwick/internal/ratelimit"
)

// RateLimit returns middleware that throttles requests through the shared
// sliding-window limiter, keyed by a request-derived string.
func RateLimit(limiter *ratelimit.Limiter, keyFunc func(*http.Request) string, cfg ratelimit.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Check(keyFunc(r), cfg)
			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", res.ResetAt.Unix()))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// KeyByUser keys the limit on the authenticated user, falling back to the
// client IP for unauthenticated routes.
func KeyByUser(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		if id := auth.UserID(r.Context()); id != 0 {
			return fmt.Sprintf("%s:user:%d", prefix, id)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, RealIP(r))
	}
}
