// Package ratelimiter implements a token bucket limiter with an in-memory
// store and an HTTP middleware.
//
// The billing API uses it per account to throttle routes that call the
// payment processor:
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, cfg)
//	if err != nil {
//		return err
//	}
//	r.Use(ratelimiter.Middleware(limiter, func(r *http.Request) string {
//		return auth.UserID(r.Context()).String()
//	}))
//
// Responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; throttled ones also carry Retry-After.
package ratelimiter
