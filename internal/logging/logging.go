// Package logging builds the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string
	Pretty bool
	// File, when set, receives JSON lines in addition to stdout.
	File string
}

// New returns the root logger and a closer for the optional log file.
func New(cfg Config, stdout io.Writer) (zerolog.Logger, func() error, error) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorFieldName = "err"

	var console io.Writer = stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: stdout, TimeFormat: "2006-01-02 15:04:05"}
	}

	closer := func() error { return nil }
	out := console
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, f)
		closer = f.Close
	}

	l := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Str("app", "resywatch").Logger()
	return l, closer, nil
}

// ParseLevel accepts debug, info, warn (or warning) and error; anything else
// is info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Discard is a logger for tests.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
