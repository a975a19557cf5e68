package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/quantlab/internal/ingest"
)

// ProvidersConfig is the YAML-configured set of provider boundaries
// QuantLab's ingestion layer can fetch from, one entry per provider name.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures one ProviderAdapter's throttle and circuit
// breaker.
type ProviderConfig struct {
	BaseURL             string  `yaml:"base_url"`
	RPS                 float64 `yaml:"rps"`
	Burst               int     `yaml:"burst"`
	ConsecutiveFailures uint32  `yaml:"consecutive_failures"`
	OpenTimeoutSecs     int     `yaml:"open_timeout_secs"`
	Enabled             bool    `yaml:"enabled"`
}

// LoadProvidersConfig reads and validates a providers YAML file.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read providers config: %w", err)
	}
	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse providers config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid providers config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every configured provider for internal consistency.
func (c *ProvidersConfig) Validate() error {
	for name, p := range c.Providers {
		if p.RPS <= 0 {
			return fmt.Errorf("provider %s: rps must be positive, got %f", name, p.RPS)
		}
		if p.Burst <= 0 {
			return fmt.Errorf("provider %s: burst must be positive, got %d", name, p.Burst)
		}
	}
	return nil
}

// ThrottleConfig converts the YAML fields into an ingest.ThrottleConfig.
func (p ProviderConfig) ThrottleConfig() ingest.ThrottleConfig {
	cfg := ingest.DefaultThrottleConfig()
	cfg.RPS = p.RPS
	cfg.Burst = p.Burst
	if p.ConsecutiveFailures > 0 {
		cfg.ConsecutiveFailures = p.ConsecutiveFailures
	}
	if p.OpenTimeoutSecs > 0 {
		cfg.OpenTimeout = time.Duration(p.OpenTimeoutSecs) * time.Second
	}
	return cfg
}

// GetProvider returns the configuration for name, if configured and
// enabled.
func (c *ProvidersConfig) GetProvider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	if !ok || !p.Enabled {
		return ProviderConfig{}, false
	}
	return p, true
}
