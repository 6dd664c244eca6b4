package cliconfig

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/stdio-inspect/internal/domain"
)

// ParseLevel parses a log level name such as "debug" or "warn".
func ParseLevel(level string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidConfig, level)
	}
	return lvl, nil
}

// Logger returns a console logger writing to out at the given level.
// An unknown level falls back to warn.
func Logger(out io.Writer, level string) zerolog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
