package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type options struct {
	prefix   string
	files    []string
	environ  map[string]string
	required bool
}

// Option tunes a single Load call.
type Option func(*options)

// WithPrefix prepends prefix to every variable name, e.g. "BILLING_".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithDotEnv replaces the default ".env" with files. Missing files are
// skipped. Later files override earlier ones; the process environment
// overrides them all.
func WithDotEnv(files ...string) Option {
	return func(o *options) { o.files = files }
}

// WithEnviron parses from vars instead of the process environment.
func WithEnviron(vars map[string]string) Option {
	return func(o *options) { o.environ = vars }
}

// Load parses environment variables into a new T using caarlos0/env struct
// tags, with values from .env files as the lowest-priority source.
func Load[T any](opts ...Option) (T, error) {
	var cfg T
	o := options{files: []string{".env"}}
	for _, opt := range opts {
		opt(&o)
	}

	vars, err := collect(o)
	if err != nil {
		return cfg, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Environment: vars,
		Prefix:      o.prefix,
	}); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad is Load for process startup; it panics on error.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func collect(o options) (map[string]string, error) {
	vars := make(map[string]string)
	for _, file := range o.files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, errors.Join(ErrReadingDotEnv, err)
		}
		for k, v := range values {
			vars[k] = v
		}
	}

	if o.environ != nil {
		for k, v := range o.environ {
			vars[k] = v
		}
		return vars, nil
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars, nil
}
