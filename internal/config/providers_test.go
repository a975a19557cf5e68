package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProvidersConfig = `
providers:
  fixture:
    base_url: "fixture://local"
    rps: 5
    burst: 10
    consecutive_failures: 5
    open_timeout_secs: 30
    enabled: true
  disabled_vendor:
    base_url: "https://example.invalid"
    rps: 1
    burst: 1
    enabled: false
`

func TestLoadProvidersConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProvidersConfig), 0o644))

	cfg, err := LoadProvidersConfig(path)
	require.NoError(t, err)

	fixture, ok := cfg.GetProvider("fixture")
	require.True(t, ok)
	assert.Equal(t, 5.0, fixture.RPS)

	_, ok = cfg.GetProvider("disabled_vendor")
	assert.False(t, ok, "disabled providers must not be returned")

	_, ok = cfg.GetProvider("missing")
	assert.False(t, ok)
}

func TestProvidersConfigValidateRejectsNonPositiveRPS(t *testing.T) {
	cfg := ProvidersConfig{Providers: map[string]ProviderConfig{
		"bad": {RPS: 0, Burst: 1},
	}}
	require.Error(t, cfg.Validate())
}

func TestProviderConfigThrottleConfigOverridesDefaults(t *testing.T) {
	p := ProviderConfig{RPS: 2, Burst: 4, ConsecutiveFailures: 3, OpenTimeoutSecs: 10}
	tc := p.ThrottleConfig()
	assert.Equal(t, 2.0, tc.RPS)
	assert.Equal(t, 4, tc.Burst)
	assert.Equal(t, uint32(3), tc.ConsecutiveFailures)
}
