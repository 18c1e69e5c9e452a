package config

import "errors"

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrReadingDotEnv = errors.New("failed to read .env file")
)
