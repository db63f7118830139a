// Package config loads typed configuration from the process environment.
//
// It wraps github.com/joho/godotenv, which merges .env files into the
// environment without overriding variables that are already set, and
// github.com/caarlos0/env/v11, which parses the environment into a struct
// described by `env` / `envDefault` tags.
//
//	type Config struct {
//	    ServerURL string `env:"SERVER_URL,required"`
//	    Listen    string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8765"`
//	}
//
//	cfg, err := config.Load[Config]()
//
// When the target type implements Validator, Load calls Validate after
// parsing and reports its error wrapped in ErrInvalidConfig.
package config
