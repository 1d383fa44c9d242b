package reporter

import (
	"github.com/xjet/xjet/errors"
	"github.com/xjet/xjet/internal/logging"
)

// Factory builds a Reporter for the given log level and optional output
// file path (empty means stdout-only).
type Factory func(level logging.Level, outputFile string) (Reporter, error)

var builtins = map[string]Factory{}

// Register adds a built-in reporter factory under name. Called from each
// built-in reporter's package init.
func Register(name string, f Factory) {
	builtins[name] = f
}

// Resolve builds the reporter named by spec: one of the registered
// built-in names, or a filesystem path to an out-of-process reporter
// executable (per Design Notes §9, custom reporters run out-of-process
// rather than being loaded into this process).
func Resolve(spec string, level logging.Level, outputFile string) (Reporter, error) {
	if f, ok := builtins[spec]; ok {
		return f(level, outputFile)
	}
	if looksLikePath(spec) {
		return NewExternal(spec, outputFile)
	}
	return nil, errors.NewKind(errors.KindUserConfig, "reporter: unknown reporter "+spec)
}

func looksLikePath(s string) bool {
	for _, r := range s {
		switch r {
		case '/', '\\', '.':
			return true
		}
	}
	return false
}
