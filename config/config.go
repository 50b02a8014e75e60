// Package config loads and validates marketguard configuration from YAML,
// .env files and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kyraven-io/marketguard/logger"
	"github.com/kyraven-io/marketguard/validation"
)

// Config is the root configuration for the marketguard service.
type Config struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`

	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Exchange      ExchangeConfig      `yaml:"exchange" mapstructure:"exchange"`

	// RateLimits maps endpoint names to their admission rule sets.
	RateLimits map[string][]RuleConfig `yaml:"rate_limits" mapstructure:"rate_limits" validate:"dive,dive"`

	// Operations overrides the built-in guard policy of individual
	// operations. Absent fields keep the operation's declared default; there
	// is no global default that silently applies to new operations.
	Operations map[string]OperationConfig `yaml:"operations" mapstructure:"operations" validate:"dive"`
}

// ServerConfig configures the administrative HTTP server.
type ServerConfig struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// CacheConfig configures cache persistence.
type CacheConfig struct {
	// PersistDir is the base directory for persistent cache files.
	PersistDir string `yaml:"persist_dir" mapstructure:"persist_dir"`
}

// ObservabilityConfig configures OTLP export.
type ObservabilityConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	Interval   int     `yaml:"interval" mapstructure:"interval"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// ExchangeConfig configures the upstream exchange API client.
type ExchangeConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Timeout int    `yaml:"timeout" mapstructure:"timeout"`
}

// RuleConfig is one fixed-window admission rule.
type RuleConfig struct {
	MaxRequests   int     `yaml:"max_requests" mapstructure:"max_requests" validate:"gt=0"`
	PeriodSeconds float64 `yaml:"period_seconds" mapstructure:"period_seconds" validate:"gt=0"`
}

// Period returns the rule period as a duration.
func (r RuleConfig) Period() time.Duration {
	return time.Duration(r.PeriodSeconds * float64(time.Second))
}

// OperationConfig overrides parts of one operation's guard policy.
// Zero values mean "keep the operation's declared default".
type OperationConfig struct {
	TTLSeconds       float64 `yaml:"ttl_seconds" mapstructure:"ttl_seconds" validate:"gte=0"`
	Persist          *bool   `yaml:"persist" mapstructure:"persist"`
	Endpoint         string  `yaml:"endpoint" mapstructure:"endpoint"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=0"`
	RecoverySeconds  float64 `yaml:"recovery_seconds" mapstructure:"recovery_seconds" validate:"gte=0"`
	TimeoutSeconds   float64 `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"gte=0"`
	SingleFlight     *bool   `yaml:"single_flight" mapstructure:"single_flight"`
}

// ApplyDefaults fills in defaults for absent fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "marketguard"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}

	if c.Observability.Endpoint == "" {
		c.Observability.Endpoint = "localhost:4318"
		c.Observability.Insecure = true
	}
	if c.Observability.Interval == 0 {
		c.Observability.Interval = 15
	}
	if c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1.0
	}

	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://whitebit.com"
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 10
	}

	if c.RateLimits == nil {
		c.RateLimits = DefaultRateLimits()
	}
}

// DefaultRateLimits returns the exchange's published public-API budgets.
func DefaultRateLimits() map[string][]RuleConfig {
	return map[string][]RuleConfig{
		"public":            {{MaxRequests: 100, PeriodSeconds: 10}},
		"get_orderbook":     {{MaxRequests: 60, PeriodSeconds: 10}},
		"get_recent_trades": {{MaxRequests: 60, PeriodSeconds: 10}},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	if err := validation.Struct(c); err != nil {
		return err
	}
	return nil
}
