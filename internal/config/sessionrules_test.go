package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSessionRules = `
version: rules-1
rules:
  XNYS:
    - regular_close_local: "16:00"
      valid_from: "2000-01-01"
      valid_to: ""
  XETR:
    - regular_close_local: "17:30"
      valid_from: "2000-01-01"
      valid_to: "2019-12-31"
    - regular_close_local: "17:35"
      valid_from: "2020-01-01"
      valid_to: ""
`

func writeSessionRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session_rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSessionRulesParsesCloseOffsets(t *testing.T) {
	rules, hash, err := LoadSessionRules(writeSessionRules(t, sampleSessionRules))
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.Equal(t, "rules-1", rules.Version)

	off, ok := rules.CloseFor("XNYS", "2024-01-02")
	require.True(t, ok)
	assert.Equal(t, 16*time.Hour, off)

	// Validity ranges select the rule in effect on the date.
	off, ok = rules.CloseFor("XETR", "2018-06-01")
	require.True(t, ok)
	assert.Equal(t, 17*time.Hour+30*time.Minute, off)
	off, ok = rules.CloseFor("XETR", "2024-01-02")
	require.True(t, ok)
	assert.Equal(t, 17*time.Hour+35*time.Minute, off)
}

func TestLoadSessionRulesHashIsStable(t *testing.T) {
	path := writeSessionRules(t, sampleSessionRules)
	_, h1, err := LoadSessionRules(path)
	require.NoError(t, err)
	_, h2, err := LoadSessionRules(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestLoadSessionRulesRejectsMalformedClock(t *testing.T) {
	_, _, err := LoadSessionRules(writeSessionRules(t, "version: v\nrules:\n  XNYS:\n    - regular_close_local: \"4pm\"\n"))
	require.Error(t, err)
}
