package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

type ctxLoggerKey struct{}

var defaultLogger *slog.Logger

func init() {
	defaultLogger = New(os.Stderr, slog.LevelInfo, FormatConsole)
}

// Format selects the log output format.
type Format int

const (
	FormatConsole Format = iota
	FormatJSON
)

// New creates a logger writing to w with the given level and format.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	switch format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return slog.New(clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithSource(false),
		))
	}
}

// Configure replaces the process-wide default logger. level is one of
// debug/info/warn/error, format is console or json.
func Configure(level, format string) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return goerr.Wrap(err, "invalid log level", goerr.V("level", level))
	}

	var f Format
	switch format {
	case "console", "":
		f = FormatConsole
	case "json":
		f = FormatJSON
	default:
		return goerr.New("invalid log format", goerr.V("format", format))
	}

	defaultLogger = New(os.Stderr, lv, f)
	return nil
}

// Default returns the process-wide default logger.
func Default() *slog.Logger {
	return defaultLogger
}

// From returns the logger bound to ctx, or the default logger.
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return defaultLogger
}

// With binds a logger to the context.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}
