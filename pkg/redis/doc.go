// Package redis connects go-redis clients with retry and exposes a readiness
// probe. Redis is optional: when REDIS_URL is empty Config.Enabled reports
// false and callers fall back to in-process alternatives.
//
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//	}
package redis
