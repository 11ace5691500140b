// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the ChatRelay
// service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds the server configuration settings including security controls.
// Fields are populated from the environment; tests construct instances
// directly.
type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8080" validate:"gte=1,lte=65535"`

	// JWTSecret is shared with the external auth service, which is the
	// only party that mints tokens.
	JWTSecret string `env:"JWT_SECRET,required=true" validate:"required,min=16"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`

	MaxMessageSize          int64         `env:"MAX_MESSAGE_SIZE,default=512" validate:"gt=0"`
	SendBufferSize          int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
	RateLimitBurst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"gt=0"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`

	// BadgerPath is where the message store lives on disk. Empty means
	// in-memory, which the tests rely on.
	BadgerPath string `env:"BADGER_PATH"`

	BulletinBaseURL     string `env:"BULLETIN_BASE_URL"`
	BulletinSpaceID     string `env:"BULLETIN_SPACE_ID"`
	BulletinAccessToken string `env:"BULLETIN_ACCESS_TOKEN"`

	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and normalizes durations that would
// otherwise disable their subsystem.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RateLimitRefillInterval <= 0 {
		c.RateLimitRefillInterval = time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins returns the configured allowed origins as a slice.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// BulletinConfigured reports whether the announcement feed collaborator is
// wired up for this deployment.
func (c *Config) BulletinConfigured() bool {
	return c.BulletinBaseURL != "" && c.BulletinSpaceID != ""
}
