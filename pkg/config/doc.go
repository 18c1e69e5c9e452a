// Package config loads typed configuration from the environment.
//
// Structs declare their variables with caarlos0/env tags:
//
//	type Config struct {
//		Addr    string        `env:"HTTP_ADDR" envDefault:":8080"`
//		Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
//		Secret  string        `env:"STRIPE_SECRET_KEY,required"`
//	}
//
//	cfg := config.MustLoad[Config]()
//
// Values come from, in increasing priority: the .env file (or files given to
// WithDotEnv), then the process environment. WithEnviron swaps the process
// environment for a fixed map, which keeps tests independent of os state.
package config
