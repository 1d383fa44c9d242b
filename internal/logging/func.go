package logging

import (
	"sync"
	"time"
)

// FuncLogger is a Logger that calls a function. All calls to the underlying
// function are synchronized.
type FuncLogger struct {
	f  func(level Level, ts time.Time, msg string)
	mu sync.Mutex
}

// NewFuncLogger creates a new FuncLogger.
func NewFuncLogger(f func(level Level, ts time.Time, msg string)) *FuncLogger {
	return &FuncLogger{f: f}
}

// Log sends a log to the associated function.
func (l *FuncLogger) Log(level Level, ts time.Time, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f(level, ts, msg)
}

// MultiLogger fans a log out to several loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a Logger that forwards every call to all loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log implements Logger.
func (l *MultiLogger) Log(level Level, ts time.Time, msg string) {
	for _, logger := range l.loggers {
		logger.Log(level, ts, msg)
	}
}
