package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrymomot/torrentbridge/pkg/httpserver"
	"github.com/dmitrymomot/torrentbridge/pkg/redis"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the daemon configuration, read from the environment and .env.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`
	LogFile  string `env:"LOG_FILE"`

	ServerURL   string        `env:"SERVER_URL,required"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	StorePrefix string `env:"STORE_PREFIX" envDefault:"torrentbridge"`
	SQLiteDSN   string `env:"SQLITE_DSN" envDefault:"torrentbridge.db"`

	DownloadDir          string        `env:"DOWNLOAD_DIR"`
	DownloadPollInterval time.Duration `env:"DOWNLOAD_POLL_INTERVAL" envDefault:"2s"`

	// CredentialsKey is a base64 32-byte key. When set, saved passwords are
	// encrypted at rest.
	CredentialsKey string `env:"CREDENTIALS_KEY"`

	HTTP  httpserver.Config
	Redis redis.Config
}

var (
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrBadServerURL   = errors.New("server URL must be an absolute http(s) URL")
	ErrRedisURLNeeded = errors.New("REDIS_URL is required for the redis store driver")
)

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadServerURL, c.ServerURL)
	}
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverRedis:
		if c.Redis.ConnectionURL == "" {
			return ErrRedisURLNeeded
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StoreDriver)
	}
	return nil
}
