package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	ServerURL string `env:"TRACKLIVE_SERVER_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" default:"10s"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" default:"10s"`

	RedisURL   string `env:"REDIS_URL"`
	StatusAddr string `env:"STATUS_ADDR"`

	ReconnectMaxAttempts    int           `env:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectInitialBackoff time.Duration `env:"RECONNECT_INITIAL_BACKOFF" default:"1s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BaseURL returns the parsed server URL. Load has already validated it.
func (c *Config) BaseURL() *url.URL {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return &url.URL{}
	}
	return u
}

func validate(cfg *Config) error {
	if cfg.ServerURL == "" {
		return errors.New("TRACKLIVE_SERVER_URL is required")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("TRACKLIVE_SERVER_URL must be a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("TRACKLIVE_SERVER_URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("TRACKLIVE_SERVER_URL must include a host")
	}

	if cfg.FetchTimeout <= 0 {
		return errors.New("FETCH_TIMEOUT must be positive")
	}
	if cfg.DialTimeout <= 0 {
		return errors.New("DIAL_TIMEOUT must be positive")
	}
	if cfg.ReconnectMaxAttempts < 1 {
		return errors.New("RECONNECT_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.RedisURL != "" {
		if _, err := url.Parse(cfg.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL must be a valid URL: %w", err)
		}
	}

	return nil
}
