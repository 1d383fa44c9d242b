package logging

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// loggerKey is the type of the key used for attaching a Logger to a
// context.Context.
type loggerKey struct{}

// pKey is an unexported context.Context key type to avoid collisions with
// other packages.
type pKey int

const prefixKey pKey = iota

// AttachLogger creates a new context with logger attached. Logs emitted via
// the new context are also propagated to any logger already attached to the
// parent context.
func AttachLogger(ctx context.Context, logger Logger) context.Context {
	if parent, ok := loggerFromContext(ctx); ok {
		logger = NewMultiLogger(logger, parent)
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// AttachLoggerNoPropagation is like AttachLogger but does not propagate to a
// logger already attached to the parent context.
func AttachLoggerNoPropagation(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// HasLogger reports whether any logger is attached to ctx.
func HasLogger(ctx context.Context) bool {
	_, ok := loggerFromContext(ctx)
	return ok
}

// SetLogPrefix returns a context that prepends prefix to every log message.
func SetLogPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, prefixKey, prefix)
}

func loggerFromContext(ctx context.Context) (Logger, bool) {
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	return logger, ok
}

// Info emits a log with info level.
func Info(ctx context.Context, args ...interface{}) { log(ctx, LevelInfo, args...) }

// Infof is similar to Info but formats its arguments using fmt.Sprintf.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelInfo, format, args...)
}

// Warn emits a log with warn level.
func Warn(ctx context.Context, args ...interface{}) { log(ctx, LevelWarn, args...) }

// Warnf is similar to Warn but formats its arguments using fmt.Sprintf.
func Warnf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelWarn, format, args...)
}

// Error emits a log with error level.
func Error(ctx context.Context, args ...interface{}) { log(ctx, LevelError, args...) }

// Errorf is similar to Error but formats its arguments using fmt.Sprintf.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelError, format, args...)
}

// Debug emits a log with debug level.
func Debug(ctx context.Context, args ...interface{}) { log(ctx, LevelDebug, args...) }

// Debugf is similar to Debug but formats its arguments using fmt.Sprintf.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, LevelDebug, format, args...)
}

func log(ctx context.Context, level Level, args ...interface{}) {
	ts := time.Now() // capture as early as possible
	logger, ok := loggerFromContext(ctx)
	if !ok {
		return
	}
	prefix := getPrefix(ctx)
	logger.Log(level, ts, ReplaceInvalidUTF8(prefix+fmt.Sprint(args...)))
}

func logf(ctx context.Context, level Level, format string, args ...interface{}) {
	ts := time.Now()
	logger, ok := loggerFromContext(ctx)
	if !ok {
		return
	}
	prefix := getPrefix(ctx)
	logger.Log(level, ts, ReplaceInvalidUTF8(prefix+fmt.Sprintf(format, args...)))
}

func getPrefix(ctx context.Context) string {
	if pf := ctx.Value(prefixKey); pf != nil {
		return pf.(string)
	}
	return ""
}

// ReplaceInvalidUTF8 replaces all invalid UTF-8 characters in msg.
func ReplaceInvalidUTF8(msg string) string {
	return strings.ToValidUTF8(msg, "")
}
