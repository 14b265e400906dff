// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/gatehouse/admission"
)

// DefaultListenAddress is where the gateway listens when the config
// does not say otherwise.
const DefaultListenAddress = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Duration wraps time.Duration so YAML fields take Go duration syntax
// ("90s", "5m", "24h").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar like \"90s\"")
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the gateway's YAML configuration. Route policies live in
// a separate JSONC file (see LoadRoutes); everything else is here.
type Config struct {
	// ListenAddress is the TCP address the gateway binds
	// (e.g. ":8080", "127.0.0.1:9443"). Defaults to
	// DefaultListenAddress.
	ListenAddress string `yaml:"listen_address"`

	// Upstream is the base URL proxied requests are forwarded to
	// (e.g. "http://10.0.0.5:3000"). Required.
	Upstream string `yaml:"upstream"`

	// TimeZone is the IANA zone name the blackout schedule is pinned
	// to (e.g. "America/New_York"). Empty means UTC.
	TimeZone string `yaml:"time_zone"`

	// ShutdownTimeout is the maximum time to wait for in-flight
	// requests during graceful shutdown. Defaults to
	// DefaultShutdownTimeout.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	Secrets     SecretFilesConfig   `yaml:"secrets"`
	Credentials CredentialTTLConfig `yaml:"credentials"`
	Identity    IdentityConfig      `yaml:"identity"`
	Rate        RateLimitConfig     `yaml:"rate"`
	Blackout    BlackoutConfig      `yaml:"blackout"`
	Journal     JournalConfig       `yaml:"journal"`
	Shield      ShieldConfig        `yaml:"upstream_shield"`
}

// SecretFilesConfig points at the hex-encoded secret files written by
// gatehouse-keygen. All three are required.
type SecretFilesConfig struct {
	// Access is the access-credential signing secret file.
	Access string `yaml:"access"`

	// Refresh is the refresh-credential signing secret file.
	Refresh string `yaml:"refresh"`

	// Assertion is the secret shared with the identity provider.
	Assertion string `yaml:"assertion"`
}

// CredentialTTLConfig overrides credential lifetimes. Zero values
// take the credential package defaults (30m access, 365d refresh).
type CredentialTTLConfig struct {
	AccessTTL  Duration `yaml:"access_ttl"`
	RefreshTTL Duration `yaml:"refresh_ttl"`
}

// IdentityConfig tunes the identity-provider handshake.
type IdentityConfig struct {
	// AssertionMaxAge is how old an assertion may be at issuance.
	// Zero takes the identity package default (5 minutes).
	AssertionMaxAge Duration `yaml:"assertion_max_age"`
}

// RateLimitConfig overrides the sliding-window thresholds. Zero
// values take the admission package defaults.
type RateLimitConfig struct {
	// Retention is the sliding window over which hits count.
	Retention Duration `yaml:"retention"`

	// Cooldown is the minimum spacing between hits from one identity.
	Cooldown Duration `yaml:"cooldown"`

	// BurstHits is how many hits within the retention window mark an
	// identity as bursting.
	BurstHits int `yaml:"burst_hits"`

	// BurstIdentities is how many bursting identities trip the
	// global breaker.
	BurstIdentities int `yaml:"burst_identities"`
}

// BlackoutConfig sets the calendar blackout fields. Empty fields take
// the admission package defaults (Monday, hours 8-11).
type BlackoutConfig struct {
	// Weekdays is a cron-style weekday field: names ("monday,fri"),
	// numbers (0 = Sunday), ranges, steps, or "*".
	Weekdays string `yaml:"weekdays"`

	// Hours is a cron-style hour field, 0-23.
	Hours string `yaml:"hours"`
}

// JournalConfig configures the decision journal. An empty Path
// disables it.
type JournalConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// Retention is how long journal rows are kept. Zero takes the
	// journal package default (7 days).
	Retention Duration `yaml:"retention"`
}

// ShieldConfig is the token-bucket limiter in front of the upstream.
// It protects the upstream from aggregate load that per-identity
// admission cannot see. Zero RequestsPerSecond disables it.
type ShieldConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LoadConfig reads and parses the YAML config file and applies
// defaults. Call Validate before using the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero-valued fields that have package defaults.
func (c *Config) ApplyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.Shield.RequestsPerSecond > 0 && c.Shield.Burst == 0 {
		c.Shield.Burst = 1
	}
}

// Validate checks the configuration for errors, reporting every
// problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddress == "" {
		errs = append(errs, fmt.Errorf("listen_address is required"))
	}

	if c.Upstream == "" {
		errs = append(errs, fmt.Errorf("upstream is required"))
	} else if upstream, err := url.Parse(c.Upstream); err != nil {
		errs = append(errs, fmt.Errorf("upstream: %w", err))
	} else if upstream.Scheme != "http" && upstream.Scheme != "https" {
		errs = append(errs, fmt.Errorf("upstream must be an http or https URL, got %q", c.Upstream))
	}

	if c.Secrets.Access == "" {
		errs = append(errs, fmt.Errorf("secrets.access is required"))
	}
	if c.Secrets.Refresh == "" {
		errs = append(errs, fmt.Errorf("secrets.refresh is required"))
	}
	if c.Secrets.Assertion == "" {
		errs = append(errs, fmt.Errorf("secrets.assertion is required"))
	}

	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("time_zone: %w", err))
		}
	}

	if c.Identity.AssertionMaxAge < 0 {
		errs = append(errs, fmt.Errorf("identity.assertion_max_age must not be negative"))
	}

	if c.Rate.Retention < 0 || c.Rate.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("rate durations must not be negative"))
	}
	if c.Rate.BurstHits < 0 || c.Rate.BurstIdentities < 0 {
		errs = append(errs, fmt.Errorf("rate thresholds must not be negative"))
	}
	if c.Rate.Cooldown.Std() > c.Rate.Retention.Std() && c.Rate.Retention != 0 {
		errs = append(errs, fmt.Errorf("rate.cooldown must not exceed rate.retention"))
	}

	if c.Blackout.Weekdays != "" || c.Blackout.Hours != "" {
		if _, err := admission.ParseSchedule(c.Blackout.Weekdays, c.Blackout.Hours, nil); err != nil {
			errs = append(errs, fmt.Errorf("blackout: %w", err))
		}
	}

	if c.Journal.Retention < 0 {
		errs = append(errs, fmt.Errorf("journal.retention must not be negative"))
	}

	if c.Shield.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("upstream_shield.requests_per_second must not be negative"))
	}
	if c.Shield.RequestsPerSecond > 0 && c.Shield.Burst < 1 {
		errs = append(errs, fmt.Errorf("upstream_shield.burst must be at least 1 when the shield is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Location resolves the configured time zone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone: %w", err)
	}
	return location, nil
}
