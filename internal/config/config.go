// Copyright 2026 The Congregreat Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration. Each group reads variables
// under its own prefix, e.g. DB_HOST or ROLE_CACHE_TTL.
type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Log           LogConfig           `envconfig:"LOG"`
	Observability ObservabilityConfig `envconfig:"OTEL"`
	Argon2        Argon2Config        `envconfig:"ARGON2"`
	Security      SecurityConfig      `envconfig:"SECURITY"`
	RateLimit     RateLimitConfig     `envconfig:"RATELIMIT"`
	Token         TokenConfig         `envconfig:"TOKEN"`
	RoleCache     RoleCacheConfig     `envconfig:"ROLE_CACHE"`
	Bootstrap     BootstrapConfig     `envconfig:"BOOTSTRAP"`
	Mail          MailConfig          `envconfig:"MAIL"`
}

// ServerConfig holds HTTP server configuration. TrustProxy takes the client
// address from X-Forwarded-For and X-Real-IP; enable it only behind a proxy
// that overwrites those headers.
type ServerConfig struct {
	Host            string        `split_words:"true" default:"0.0.0.0"`
	Port            string        `split_words:"true" default:"8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"15s"`
	IdleTimeout     time.Duration `split_words:"true" default:"60s"`
	RequestTimeout  time.Duration `split_words:"true" default:"30s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	TrustProxy      bool          `split_words:"true" default:"false"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `split_words:"true" default:"localhost"`
	Port            string        `split_words:"true" default:"5432"`
	User            string        `split_words:"true" default:"congregreat"`
	Password        string        `split_words:"true"`
	Name            string        `split_words:"true" default:"congregreat"`
	SSLMode         string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns    int           `split_words:"true" default:"25"`
	MaxIdleConns    int           `split_words:"true" default:"5"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"5m"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `split_words:"true" default:"info"`
	Format string `split_words:"true" default:"json"`
}

// ObservabilityConfig holds tracing and metrics configuration
type ObservabilityConfig struct {
	Enabled        bool    `split_words:"true" default:"false"`
	ServiceName    string  `split_words:"true" default:"congregreat"`
	ServiceVersion string  `split_words:"true" default:"0.1.0"`
	SamplingRate   float64 `split_words:"true" default:"1.0"`
}

// Argon2Config holds password hashing parameters
type Argon2Config struct {
	Memory      uint32 `split_words:"true" default:"65536"`
	Iterations  uint32 `split_words:"true" default:"3"`
	Parallelism uint8  `split_words:"true" default:"4"`
	SaltLength  uint32 `split_words:"true" default:"16"`
	KeyLength   uint32 `split_words:"true" default:"32"`
}

// SecurityConfig holds account protection settings
type SecurityConfig struct {
	LockoutMaxAttempts int           `split_words:"true" default:"5"`
	LockoutDuration    time.Duration `split_words:"true" default:"15m"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RPS   float64 `split_words:"true" default:"10"`
	Burst int     `split_words:"true" default:"20"`
}

// TokenConfig holds bearer token settings. Without a key file an ephemeral
// key is generated at startup.
type TokenConfig struct {
	PrivateKeyFile       string        `split_words:"true"`
	Lifetime             time.Duration `split_words:"true" default:"48h"`
	Issuer               string        `split_words:"true" default:"congregreat"`
	ConfirmationLifetime time.Duration `split_words:"true" default:"12h"`
}

// MailConfig holds outgoing mail settings. Messages are written to the log.
type MailConfig struct {
	From       string `split_words:"true" default:"Congregreat <confirmation@congregreat.com>"`
	ConfirmURL string `split_words:"true" default:"http://localhost:3001/confirm/"`
}

// RoleCacheConfig holds the resolver's role cache settings
type RoleCacheConfig struct {
	Enabled bool          `split_words:"true" default:"true"`
	Size    int           `split_words:"true" default:"1024"`
	TTL     time.Duration `split_words:"true" default:"1m"`
}

// BootstrapConfig names the first system administrator
type BootstrapConfig struct {
	AdminEmail    string `split_words:"true"`
	AdminPassword string `split_words:"true"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATELIMIT_RPS and RATELIMIT_BURST must be positive"))
	}
	if c.Token.Lifetime <= 0 {
		errs = append(errs, errors.New("TOKEN_LIFETIME must be positive"))
	}
	if c.Token.ConfirmationLifetime <= 0 {
		errs = append(errs, errors.New("TOKEN_CONFIRMATION_LIFETIME must be positive"))
	}
	if c.RoleCache.Enabled && c.RoleCache.Size <= 0 {
		errs = append(errs, errors.New("ROLE_CACHE_SIZE must be positive when the cache is enabled"))
	}
	if c.Security.LockoutMaxAttempts <= 0 {
		errs = append(errs, errors.New("SECURITY_LOCKOUT_MAX_ATTEMPTS must be positive"))
	}
	return errors.Join(errs...)
}
