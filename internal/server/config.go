// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the friendchat service.
package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"min=1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"min=1ms"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string        `env:"SERVER_PORT,default=:8080" validate:"required"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"`
	JWTSecret       string        `env:"JWT_SECRET,default=friendchat-dev-secret-change-me" validate:"required"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=512" validate:"min=1"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256" validate:"min=1"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"min=1s"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	UserSeedFile    string        `env:"USER_SEED_FILE"`
	RateLimit       RateLimitConfig
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

var validate = validator.New()

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port:            ":8080",
		AllowedOrigins:  []string{"http://localhost:8080"},
		JWTSecret:       "friendchat-dev-secret-change-me",
		MaxMessageSize:  512,
		SendBufferSize:  256,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "INFO",
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = defaultConfig().JWTSecret
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables and
// validates it. Unset variables fall back to their declared defaults.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("server: loading config from environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}
	return &cfg, nil
}
