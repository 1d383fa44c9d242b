// Package errors provides the error construction utilities used throughout
// xjet.
//
// To construct new errors or wrap other errors, use this package rather
// than the standard library (errors.New, fmt.Errorf). This package records
// stack traces and chained errors, and leaves nicely formatted diagnostics
// when suites fail.
//
// # Simple usage
//
//	errors.New("no test files found")
//	errors.Errorf("unknown runner id %q", id)
//
// To construct an error by adding context to an existing error, use Wrap or
// Wrapf.
//
//	errors.Wrap(err, "failed to dispatch suite")
//
// A stack trace can be printed by formatting an error with the "%+v" verb.
//
// # Kinds
//
// Errors that must be classified per the §7 taxonomy (UserConfigError,
// BundleError, SandboxRuntimeError, SuiteFatal, TimeoutError, ProtocolError)
// are created with NewKind/WrapKind and inspected with KindOf.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xjet/xjet/errors/stack"
)

// Kind classifies an error per the orchestrator's error taxonomy.
type Kind string

// Error kinds recognized by the orchestrator and CLI exit-code logic.
const (
	KindNone                Kind = ""
	KindUserConfig          Kind = "user_config"
	KindBundle              Kind = "bundle"
	KindSandboxRuntime      Kind = "sandbox_runtime"
	KindSuiteFatal          Kind = "suite_fatal"
	KindAssertion           Kind = "assertion"
	KindTimeout             Kind = "timeout"
	KindProtocol            Kind = "protocol"
)

// E is the error implementation used by this package.
type E struct {
	msg   string      // error message to be prepended to cause
	stk   stack.Stack // stack trace where this error was created
	cause error       // original error that caused this error, if any
	kind  Kind        // classification, possibly KindNone
}

// Error implements the error interface.
func (e *E) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap implements the error Unwrap interface.
func (e *E) Unwrap() error {
	return e.cause
}

// Kind returns the error's classification, or KindNone if unclassified.
func (e *E) Kind() Kind {
	return e.kind
}

// unwrapper is a private interface of *E providing access to its fields so
// that *E may be embedded in user-defined error types.
type unwrapper interface {
	unwrap() (msg string, stk stack.Stack, cause error)
}

func (e *E) unwrap() (msg string, stk stack.Stack, cause error) {
	return e.msg, e.stk, e.cause
}

func formatChain(err error) string {
	var chain []string
	for err != nil {
		if e, ok := err.(unwrapper); ok {
			msg, stk, cause := e.unwrap()
			chain = append(chain, fmt.Sprintf("%s\n%v", msg, stk))
			err = cause
		} else {
			chain = append(chain, fmt.Sprintf("%+v", err))
			err = nil
		}
	}
	return strings.Join(chain, "\n")
}

// Format implements fmt.Formatter. The "%+v" verb prints the full chain
// with stack traces; all other verbs print Error().
func (e *E) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, formatChain(e))
	} else {
		io.WriteString(s, e.Error())
	}
}

// New creates a new unclassified error with the given message, recording
// the call site.
func New(msg string) *E {
	return &E{msg: msg, stk: stack.New(1)}
}

// Errorf creates a new unclassified error, recording the call site.
func Errorf(format string, args ...interface{}) *E {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1)}
}

// Wrap creates a new unclassified error wrapping cause, recording the call
// site. If cause is nil this behaves like New.
func Wrap(cause error, msg string) *E {
	return &E{msg: msg, stk: stack.New(1), cause: cause}
}

// Wrapf creates a new unclassified error wrapping cause, recording the call
// site. If cause is nil this behaves like Errorf.
func Wrapf(cause error, format string, args ...interface{}) *E {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1), cause: cause}
}

// NewKind creates a new classified error.
func NewKind(kind Kind, msg string) *E {
	return &E{msg: msg, stk: stack.New(1), kind: kind}
}

// Errorfk creates a new classified, formatted error.
func Errorfk(kind Kind, format string, args ...interface{}) *E {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1), kind: kind}
}

// WrapKind creates a new classified error wrapping cause.
func WrapKind(kind Kind, cause error, msg string) *E {
	return &E{msg: msg, stk: stack.New(1), cause: cause, kind: kind}
}

// WrapKindf creates a new classified, formatted error wrapping cause.
func WrapKindf(kind Kind, cause error, format string, args ...interface{}) *E {
	return &E{msg: fmt.Sprintf(format, args...), stk: stack.New(1), cause: cause, kind: kind}
}

// KindOf walks err's chain and returns the first non-empty Kind found, or
// KindNone if none of the errors in the chain are classified.
func KindOf(err error) Kind {
	for err != nil {
		if k, ok := err.(interface{ Kind() Kind }); ok {
			if kind := k.Kind(); kind != KindNone {
				return kind
			}
		}
		err = errors.Unwrap(err)
	}
	return KindNone
}

// Is is a wrapper of the standard library's errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As is a wrapper of the standard library's errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap is a wrapper of the standard library's errors.Unwrap.
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is a wrapper of the standard library's errors.Join.
func Join(errs ...error) error { return errors.Join(errs...) }
