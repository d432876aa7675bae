// Package config loads service configuration from the environment, with
// optional .env support for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds everything the process needs to start.
type Config struct {
	// Server
	Addr string // listen address, e.g. ":5000"
	Env  string // development, production or test

	// Database
	PostgresDSN string

	// Auth
	AuthSecret string        // HS256 signing secret
	AccessTTL  time.Duration // bearer access token lifetime
	SessionTTL time.Duration // session cookie token lifetime

	// HTTP hardening
	CORSOrigins  []string // origins allowed to send credentialed requests
	MaxBodyBytes int64
	RateBurst    int
	RatePerSec   int

	// Filesystem
	MigrationsDir string
	SeedsDir      string
	AvatarsDir    string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:          envOr("APP_ADDR", ":5000"),
		Env:           strings.ToLower(envOr("APP_ENV", EnvDevelopment)),
		PostgresDSN:   os.Getenv("PG_DSN"),
		AuthSecret:    os.Getenv("AUTH_SECRET"),
		AccessTTL:     15 * time.Minute,
		SessionTTL:    24 * time.Hour,
		MaxBodyBytes:  1 << 20,
		RateBurst:     50,
		RatePerSec:    25,
		MigrationsDir: envOr("MIGRATIONS_DIR", "migrations"),
		SeedsDir:      envOr("SEEDS_DIR", "seeds"),
		AvatarsDir:    envOr("AVATARS_DIR", "files/avatars"),
	}

	if raw := os.Getenv("ACCESS_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse ACCESS_TTL: %w", err)
		}
		cfg.AccessTTL = d
	}
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if raw := os.Getenv("RATE_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: RATE_BURST must be a positive integer")
		}
		cfg.RateBurst = n
	}
	if raw := os.Getenv("RATE_PER_SEC"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: RATE_PER_SEC must be a positive integer")
		}
		cfg.RatePerSec = n
	}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("config: unknown APP_ENV %q", c.Env)
	}
	if strings.TrimSpace(c.AuthSecret) == "" {
		return errors.New("config: AUTH_SECRET is required")
	}
	if c.Env == EnvProduction && len(c.AuthSecret) < 32 {
		return errors.New("config: AUTH_SECRET must be at least 32 bytes in production")
	}
	if c.AccessTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	return nil
}

// IsDevelopment reports whether the process runs without TLS-only cookies.
func (c *Config) IsDevelopment() bool {
	return c.Env != EnvProduction
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
