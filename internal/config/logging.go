package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the root logger from LOG_LEVEL and LOG_FORMAT. An
// unrecognized level falls back to info; any format other than "console"
// means structured JSON on stdout.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer
	switch strings.ToLower(cfg.Format) {
	case "console":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		out = os.Stdout
	}

	root := zerolog.New(out).Level(level).With().Timestamp().Logger()
	// Packages that reach for the global logger get the same sink.
	log.Logger = root
	return root
}
