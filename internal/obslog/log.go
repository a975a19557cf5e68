// Package obslog bootstraps QuantLab's structured logger. The ingestion
// runner and the risk engine log through Component loggers built here; the
// access service and the pricing and stress engines do not log. Nothing in
// the cores calls fmt.Println or constructs its own zerolog.Logger from
// scratch.
package obslog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls the global logger's level and output format.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Pretty bool   // human-readable console writer instead of JSON
}

// Init installs the global zerolog logger used by log.Logger / log.Info()
// throughout the repo. Call once at process start (cmd/quantlab's root
// command); library code should never call Init itself.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a "component" field, the
// convention every package in this repo uses instead of passing loggers
// around as constructor arguments.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
