package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
)

// RateLimit returns per-client-IP rate limiting middleware backed by a
// token bucket. A non-positive perMinute disables limiting.
//
// The returned closer must be called on shutdown to stop the limiter's
// bookkeeping.
func RateLimit(perMinute int) (func(http.Handler) http.Handler, func() error) {
	if perMinute <= 0 {
		passthrough := func(next http.Handler) http.Handler { return next }
		return passthrough, func() error { return nil }
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     perMinute,
		Burst:    perMinute,
		Interval: time.Minute,
	})

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return mw, limiter.Close
}

// clientIP keys the limiter by remote host. RealIP middleware runs first,
// so RemoteAddr already reflects X-Forwarded-For where trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
