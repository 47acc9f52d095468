// Package middleware contains HTTP middleware for the controller API.
package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit bounds the request rate across the whole API. rps=0 disables
// limiting.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
