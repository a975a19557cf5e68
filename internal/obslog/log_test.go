package obslog

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSetsGlobalLevel(t *testing.T) {
	Init(Config{Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInitFallsBackToInfoOnUnknownLevel(t *testing.T) {
	Init(Config{Level: "not-a-level"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestComponentTagsLoggerWithComponentField(t *testing.T) {
	Init(Config{Level: "info"})
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = original }()

	logger := Component("ingest.runner")
	logger.Info().Msg("hello")
	require.Contains(t, buf.String(), `"component":"ingest.runner"`)
}
