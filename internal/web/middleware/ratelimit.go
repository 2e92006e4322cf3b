package middleware

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// ErrRateLimited is passed to the ErrorResponder when a client exceeds its
// request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimit returns middleware allowing perMinute requests per client IP in
// a sliding one-minute window. Each call creates its own counter store, so
// separate limits (for example a stricter one on uploads) do not share
// budgets. X-RateLimit-* headers are set on every response.
func RateLimit(perMinute int64, onError ErrorResponder) func(http.Handler) http.Handler {
	rate := limiter.Rate{Period: time.Minute, Limit: perMinute}
	instance := limiter.New(memory.NewStore(), rate)

	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(clientKey),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "60")
			onError(w, r, ErrRateLimited)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			onError(w, r, err)
		}),
	)
	return mw.Handler
}

// clientKey keys the limiter on the client IP. TrustedRealIP has already
// resolved proxies, so the port is all that needs removing.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
