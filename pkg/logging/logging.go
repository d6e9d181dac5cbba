// Package logging builds the process loggers. Infrastructure clients log
// through slog; the estimator diagnostics can be routed to a zap logger
// when the zap backend is selected.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Loggers holds the slog logger every agent uses and, for the zap backend,
// the zap logger that receives estimator diagnostics
type Loggers struct {
	Slog *slog.Logger
	Zap  *zap.Logger
}

// Sync flushes the zap logger if one was built
func (l *Loggers) Sync() error {
	if l.Zap == nil {
		return nil
	}
	return l.Zap.Sync()
}

// New builds the loggers for a backend. The slog logger is installed as the
// process default.
func New(backend, level, serviceName string, w io.Writer) (*Loggers, error) {
	if w == nil {
		w = os.Stdout
	}

	logger := NewSlogLogger(w, level)
	slog.SetDefault(logger)

	loggers := &Loggers{Slog: logger}
	switch backend {
	case "", BackendSlog:
	case BackendZap:
		zl, err := NewZapLogger(level, "json", serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
		loggers.Zap = zl
	default:
		return nil, fmt.Errorf("unknown log backend: %s", backend)
	}
	return loggers, nil
}

// NewSlogLogger creates the text logger used by the agents
func NewSlogLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps a config log level to slog. Unknown levels are info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewZapLogger builds a zap logger.
// format: "json" (production, stdout) or "console" (development)
func NewZapLogger(level, format, serviceName string) (*zap.Logger, error) {
	zapLevel := zapLevel(level)

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel)
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if serviceName != "" {
		logger = logger.With(zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		logger = logger.With(zap.String("hostname", hostname))
	}

	return logger, nil
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
