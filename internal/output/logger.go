package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide structured logger. It writes to stderr so the
// glyph stream on stdout stays readable.
var Logger *slog.Logger

var level = new(slog.LevelVar)

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Configure rebuilds Logger with the given level ("debug", "info", "warn",
// "error") and format ("text" or "json").
func Configure(w io.Writer, lvl, format string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	level.Set(l)

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		Logger = slog.New(slog.NewTextHandler(w, opts))
	case "json":
		Logger = slog.New(slog.NewJSONHandler(w, opts))
	default:
		return fmt.Errorf("invalid log format %q (want text or json)", format)
	}
	return nil
}

// SetLogger allows overriding the default logger (e.g. for testing)
func SetLogger(l *slog.Logger) {
	Logger = l
}
