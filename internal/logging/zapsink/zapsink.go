// Package zapsink adapts go.uber.org/zap into the logging.Logger sink
// interface, and conversely exposes a logr.Logger facade over the same
// zap core for components that prefer the logr calling convention.
package zapsink

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xjet/xjet/internal/logging"
)

// Sink wraps a *zap.Logger as a logging.Logger.
type Sink struct {
	z *zap.Logger
}

// New builds a Sink writing to stderr, filtered to minLevel and above.
func New(minLevel logging.Level, verbose bool) (*Sink, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if verbose {
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(minLevel))

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Sink{z: z}, nil
}

// Log implements logging.Logger.
func (s *Sink) Log(level logging.Level, ts time.Time, msg string) {
	ce := s.z.Check(toZapLevel(level), msg)
	if ce == nil {
		return
	}
	ce.Time = ts
	ce.Write()
}

// Sync flushes any buffered log entries.
func (s *Sink) Sync() error {
	return s.z.Sync()
}

// Logr returns a logr.Logger facade over the same underlying zap core, for
// components (e.g. controller-style code) written against logr.
func (s *Sink) Logr() logr.Logger {
	return zapr.NewLogger(s.z)
}

func toZapLevel(level logging.Level) zapcore.Level {
	switch level {
	case logging.LevelSilent:
		return zapcore.FatalLevel + 1 // effectively disables output
	case logging.LevelError:
		return zapcore.ErrorLevel
	case logging.LevelWarn:
		return zapcore.WarnLevel
	case logging.LevelInfo:
		return zapcore.InfoLevel
	case logging.LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
