// Package xerrors defines the typed error kinds used across archkit's
// resolver, engine, and orchestrator. It mirrors the shape of
// jordigilh-kubernaut's internal/errors package: a single struct carrying a
// Kind enum, a message, and an optional wrapped cause, rather than a zoo of
// sentinel error values.
package xerrors

import "fmt"

// Kind enumerates the error kinds named by the propagation policy: each one
// is handled at a specific boundary (run-abort, rule-drop, fact-null, ...).
type Kind string

const (
	InvalidPlugin        Kind = "invalid_plugin"
	PluginInitFailed      Kind = "plugin_init_failed"
	BadArchetypeName      Kind = "bad_archetype_name"
	BadConfig             Kind = "bad_config"
	ConfigFetchFailed     Kind = "config_fetch_failed"
	PathOutsideAllowList  Kind = "path_outside_allow_list"
	InvalidRule           Kind = "invalid_rule"
	FactExecutionFailed   Kind = "fact_execution_failed"
	RuleExecutionFailed   Kind = "rule_execution_failed"
	Cancelled             Kind = "cancelled"
	ReportWriteFailed     Kind = "report_write_failed"
)

// Error is the structured error type returned by archkit's core packages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps an existing error as its cause.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf creates a wrapped Error with a formatted message.
func Wrapf(cause error, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, xerrors.New(xerrors.BadConfig, "")) style checks, or
// more idiomatically use the Of helper below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Of reports whether err is an *Error of the given kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Kind == kind
	}
	return false
}
