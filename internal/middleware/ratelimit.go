package middleware

import (
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/lanternfly/gallery/internal/response"
)

// RateLimit returns middleware that admits at most perSecond requests per
// second across all clients, with bursts up to burst. Requests over the
// limit get 429 immediately instead of queuing. A non-positive perSecond
// disables the limiter.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	retryAfter := strconv.Itoa(int(1/perSecond) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				response.TooManyRequests(w, "too many uploads, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
