package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level and output format.
type Config struct {
	Level  string // trace|debug|info|warn|error
	Format string // json|console
}

// New creates a zerolog logger writing to stderr so that command output on
// stdout stays clean.
func New(cfg Config) *zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(cfg Config, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "json" {
		base = zerolog.New(w)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	}
	base = base.Level(level).With().Timestamp().Logger()
	return &base
}

// Nop returns a disabled logger, used as the default in libraries.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type ctxKey string

const (
	ctxTaskID ctxKey = "task_id"
	ctxDocID  ctxKey = "document_id"
)

// With attaches task and document ids found on ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v, ok := ctx.Value(ctxTaskID).(string); ok && v != "" {
		l = l.Str("task_id", v)
	}
	if v, ok := ctx.Value(ctxDocID).(string); ok && v != "" {
		l = l.Str("document_id", v)
	}
	logger := l.Logger()
	return &logger
}

func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTaskID, id)
}

func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxDocID, id)
}

// TraceDuration logs start and end with elapsed duration at TRACE level.
// Usage: defer logging.TraceDuration(logger, "Orchestrator.Run")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}
