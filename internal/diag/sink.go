// Package diag provides the leveled diagnostic sink used by the motion
// estimator and its callers. Sinks are observability only; nothing reads
// back from them.
package diag

import (
	"log/slog"

	"go.uber.org/zap"
)

// Sink accepts leveled diagnostic messages tagged with a category
type Sink interface {
	// Debug records a verbose message
	Debug(category, msg string, kv ...any)

	// Warn records a recoverable anomaly
	Warn(category, msg string, kv ...any)

	// Error records a failure together with its error detail
	Error(category, msg string, err error, kv ...any)

	// With returns a sink that adds the given key/value pairs to every message
	With(kv ...any) Sink
}

// slogSink writes to a log/slog logger
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink backed by the given slog logger.
// A nil logger falls back to slog.Default().
func NewSlogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogSink{logger: logger}
}

func (s *slogSink) Debug(category, msg string, kv ...any) {
	s.logger.Debug(msg, withCategory(category, kv)...)
}

func (s *slogSink) Warn(category, msg string, kv ...any) {
	s.logger.Warn(msg, withCategory(category, kv)...)
}

func (s *slogSink) Error(category, msg string, err error, kv ...any) {
	args := withCategory(category, kv)
	if err != nil {
		args = append(args, "error", err)
	}
	s.logger.Error(msg, args...)
}

func (s *slogSink) With(kv ...any) Sink {
	return &slogSink{logger: s.logger.With(kv...)}
}

// zapSink writes to a zap sugared logger
type zapSink struct {
	logger *zap.SugaredLogger
}

// NewZapSink creates a sink backed by the given zap logger.
// A nil logger produces a no-op sink.
func NewZapSink(logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &zapSink{logger: logger.Sugar()}
}

func (z *zapSink) Debug(category, msg string, kv ...any) {
	z.logger.Debugw(msg, withCategory(category, kv)...)
}

func (z *zapSink) Warn(category, msg string, kv ...any) {
	z.logger.Warnw(msg, withCategory(category, kv)...)
}

func (z *zapSink) Error(category, msg string, err error, kv ...any) {
	args := withCategory(category, kv)
	if err != nil {
		args = append(args, "error", err)
	}
	z.logger.Errorw(msg, args...)
}

func (z *zapSink) With(kv ...any) Sink {
	return &zapSink{logger: z.logger.With(kv...)}
}

type nopSink struct{}

// Nop returns a sink that discards everything
func Nop() Sink {
	return nopSink{}
}

func (nopSink) Debug(string, string, ...any)        {}
func (nopSink) Warn(string, string, ...any)         {}
func (nopSink) Error(string, string, error, ...any) {}
func (n nopSink) With(...any) Sink                  { return n }

func withCategory(category string, kv []any) []any {
	args := make([]any, 0, len(kv)+2)
	args = append(args, "category", category)
	return append(args, kv...)
}
