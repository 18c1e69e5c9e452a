package ratelimiter

import (
	"math"
	"net/http"
	"strconv"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// DeniedFunc writes the response for a throttled or failed check. err is
// nil when the bucket is empty.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, res *Result, err error)

type middlewareConfig struct {
	denied DeniedFunc
}

type MiddlewareOption func(*middlewareConfig)

// WithDeniedHandler replaces the plain-text 429/500 responses.
func WithDeniedHandler(fn DeniedFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.denied = fn
		}
	}
}

// Middleware throttles requests per key and sets the X-RateLimit-* headers.
func Middleware(l Limiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{denied: defaultDenied}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), key)
			if err != nil {
				cfg.denied(w, r, nil, err)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter().Seconds()))))
				cfg.denied(w, r, res, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultDenied(w http.ResponseWriter, _ *http.Request, _ *Result, err error) {
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}
