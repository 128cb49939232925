// Package config holds the server process configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. WEBDB_HTTP.
const Prefix = "WEBDB"

// Config holds runtime configuration for the server.
type Config struct {
	HTTP            string        `envconfig:"HTTP" default:"127.0.0.1:5555"`
	DataDir         string        `envconfig:"DATA_DIR" default:"./data"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LoginRatePerMin int           `envconfig:"LOGIN_RATE_PER_MIN" default:"10"`
	History         bool          `envconfig:"HISTORY" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	TrustProxy      bool          `envconfig:"TRUST_PROXY" default:"false"`

	// AdminPassword is only used by -init.
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

// Load reads configuration from WEBDB_* environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be checked by parsing alone.
func (c *Config) Validate() error {
	if c.HTTP == "" {
		return errors.New("http address must be provided")
	}
	if c.DataDir == "" {
		return errors.New("data directory must be provided")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LoginRatePerMin < 0 {
		return fmt.Errorf("login rate must not be negative, got %d", c.LoginRatePerMin)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}
