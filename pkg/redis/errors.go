package redis

import "errors"

var (
	ErrMissingConnectionURL = errors.New("redis: REDIS_URL is not set")
	ErrInvalidConnectionURL = errors.New("redis: cannot parse REDIS_URL")
	ErrNotReady             = errors.New("redis: server did not answer PING before the connect deadline")
	ErrUnhealthy            = errors.New("redis: readiness ping failed")
)
