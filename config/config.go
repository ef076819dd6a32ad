// Package config defines the configuration surface for the SIFEN client
// (spec §6): environment selection, issuer RUC, certificate material,
// timeouts, retry bounds, TLS policy, rate limits, and queue depth.
package config

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gaxoblanco/sifen-go/errors"
	"github.com/gaxoblanco/sifen-go/types"
)

// CertificateConfig locates the PKCS#12 key material used to sign documents.
type CertificateConfig struct {
	Path     string `json:"path" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RateLimits overrides the §5 default client-side rate limits.
type RateLimits struct {
	PerRucPerSec    int `json:"per_ruc_per_sec,omitempty"`
	PerIPPerMinute  int `json:"per_ip_per_min,omitempty"`
	ConcurrentPerRuc int `json:"concurrent_per_ruc,omitempty"`
}

// DefaultRateLimits returns the §5 client-side defaults.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		PerRucPerSec:     10,
		PerIPPerMinute:   100,
		ConcurrentPerRuc: 5,
	}
}

// Config is the sender's full configuration surface (spec §6's table).
type Config struct {
	Environment types.Environment  `json:"environment" validate:"required,oneof=1 2"`
	RucEmisor   string             `json:"ruc_emisor" validate:"required"`
	Certificate CertificateConfig  `json:"certificate" validate:"required"`
	TimeoutMs   int                `json:"timeout_ms,omitempty"`
	MaxRetries  int                `json:"max_retries,omitempty"`
	VerifyTLS   bool               `json:"verify_tls"`
	RateLimits  RateLimits         `json:"rate_limits,omitempty"`
	QueueDepth  int                `json:"queue_depth,omitempty"`

	// JournalPath is the optional append-only submission journal path
	// (spec §6, "Persisted state"). Empty disables journaling.
	JournalPath string `json:"journal_path,omitempty"`
}

// Default returns a Config with spec-mandated defaults for env, with TLS
// verification on (test environments may opt out explicitly).
func Default(env types.Environment) *Config {
	return &Config{
		Environment: env,
		TimeoutMs:   types.DefaultTimeoutSeconds * 1000,
		MaxRetries:  3,
		VerifyTLS:   true,
		RateLimits:  DefaultRateLimits(),
		QueueDepth:  1000,
	}
}

// Timeout returns TimeoutMs as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Validate checks the configuration against spec §6's constraints.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("configuration cannot be nil", "", nil)
	}

	if !c.Environment.IsValid() {
		return errors.NewConfigError("invalid environment", "environment", c.Environment)
	}

	if strings.TrimSpace(c.RucEmisor) == "" {
		return errors.NewConfigError("ruc_emisor is required", "ruc_emisor", c.RucEmisor)
	}

	if strings.TrimSpace(c.Certificate.Path) == "" {
		return errors.NewConfigError("certificate.path is required", "certificate.path", c.Certificate.Path)
	}
	if strings.TrimSpace(c.Certificate.Password) == "" {
		return errors.NewConfigError("certificate.password is required", "certificate.password", "")
	}

	timeoutSeconds := c.TimeoutMs / 1000
	if c.TimeoutMs != 0 && (timeoutSeconds < types.MinTimeoutSeconds || timeoutSeconds > types.MaxTimeoutSeconds) {
		return errors.NewConfigError(
			"timeout_ms must resolve to a value between the configured min and max timeout seconds",
			"timeout_ms", c.TimeoutMs,
		)
	}

	if c.MaxRetries != 0 && (c.MaxRetries < 1 || c.MaxRetries > 10) {
		return errors.NewConfigError("max_retries must be between 1 and 10", "max_retries", c.MaxRetries)
	}

	if !c.VerifyTLS && c.Environment == types.Production {
		return errors.NewConfigError("verify_tls may only be disabled in the test environment", "verify_tls", c.VerifyTLS)
	}

	if c.QueueDepth < 0 {
		return errors.NewConfigError("queue_depth cannot be negative", "queue_depth", c.QueueDepth)
	}

	return nil
}

// ParseJSON parses and validates a JSON-encoded Config, applying defaults
// for zero-valued fields before validation.
func ParseJSON(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, errors.NewConfigError("configuration JSON cannot be empty", "", nil)
	}

	cfg := Default(types.Test)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("invalid configuration JSON", "", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ToJSON serializes the configuration, omitting the certificate password.
func (c *Config) ToJSON() ([]byte, error) {
	redacted := *c
	redacted.Certificate.Password = ""
	return json.MarshalIndent(&redacted, "", "  ")
}
