// Package logging provides centralized zerolog-based logging for adgraph.
//
// Quick start:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("file", path).Msg("reading input")
//	logging.Ctx(ctx).Warn().Err(err).Msg("record skipped")
//
// Log chains must terminate with .Msg() or .Send(); a chain left hanging
// never emits.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string
	// Format is the output format: json or console.
	Format string
	// Caller includes caller file:line in each record.
	Caller bool
	// Output is the writer for log output. Default: os.Stderr.
	Output io.Writer
}

// DefaultConfig returns sensible defaults for a CLI tool.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: os.Stderr}
}

var (
	logger   zerolog.Logger
	initOnce sync.Once
)

// Init configures the global logger. Safe to call once at process startup;
// subsequent calls are no-ops.
func Init(cfg Config) {
	initOnce.Do(func() {
		logger = build(cfg)
	})
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(level)
}

// L returns the global logger, initializing it with defaults if Init was
// never called.
func L() *zerolog.Logger {
	initOnce.Do(func() {
		logger = build(DefaultConfig())
	})
	return &logger
}

func Info() *zerolog.Event  { return L().Info() }
func Warn() *zerolog.Event  { return L().Warn() }
func Error() *zerolog.Event { return L().Error() }
func Debug() *zerolog.Event { return L().Debug() }
func Fatal() *zerolog.Event { return L().Fatal() }

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	loggerKey        contextKey = "logger"
)

// GenerateCorrelationID returns a short id suitable for tagging one pipeline run.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID attaches a correlation id and a bound sub-logger
// to ctx so downstream components can log with Ctx(ctx) without re-threading
// the id through every call signature.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, correlationIDKey, id)
	sub := L().With().Str("run_id", id).Logger()
	return context.WithValue(ctx, loggerKey, &sub)
}

// Ctx returns the logger bound to ctx, or the global logger if none was attached.
func Ctx(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok {
		return l
	}
	return L()
}

// CorrelationIDFromContext retrieves the correlation id, or "" if unset.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
