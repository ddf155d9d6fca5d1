// Package logging builds the diagnostic [log/slog] logger. Diagnostics go to
// stderr; operator-facing status lines are printed by package console.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/examplewatch/internal/config"
)

// clockFormat is the text-format timestamp. Sessions are short and
// interactive, so the date is noise.
const clockFormat = "15:04:05.000"

type ctxKey struct{}

// Setup builds the logger described by cfg on stderr and installs it as
// slog's default.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := New(w, cfg.LogFormat, ParseLevel(cfg.EffectiveLogLevel()))
	slog.SetDefault(logger)

	return logger
}

// New returns a logger writing format ("text" or "json") to w at level.
// Text records carry a wall-clock time only.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(clockFormat))
			}

			return a
		},
	}))
}

// Discard returns a logger that drops everything. Components fall back to it
// when constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a config log level to slog.Level; unknown values map
// to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// ForTarget returns the context logger tagged with the supervised example.
func ForTarget(ctx context.Context, name string) *slog.Logger {
	return FromContext(ctx).With(slog.String("target", name))
}

// Since logs how long an operation took once the returned func is called.
func Since(logger *slog.Logger, msg string, args ...any) func() {
	start := time.Now()

	return func() {
		logger.Debug(msg, append(args, slog.Duration("took", time.Since(start)))...)
	}
}
