// Package xerr defines the error taxonomy shared by the exchange adapter,
// risk engine, and scheduler. Each kind is a sentinel carried, together with
// a message and an optional cause, by a small tagged error type, so callers
// can classify failures with errors.Is without string matching.
package xerr

import "errors"

var (
	// ErrTransientExchange marks a timeout, 5xx, or rate-limit response from
	// the exchange. The current tick aborts for the affected symbol; the
	// next tick retries.
	ErrTransientExchange = errors.New("transient exchange error")

	// ErrPermanentExchange marks a 4xx (other than rate-limit) response,
	// e.g. an invalid symbol. The caller should warn and, if the error
	// persists across two consecutive detect ticks, drop the symbol.
	ErrPermanentExchange = errors.New("permanent exchange error")

	// ErrValidation marks a close quantity that rounds below min_qty after
	// step-size rounding. The action is skipped; no hit-flag is set.
	ErrValidation = errors.New("validation error")

	// ErrNotifier marks a failed outbound notification delivery. Dropped
	// silently after retries; never fatal to the caller.
	ErrNotifier = errors.New("notifier error")

	// ErrConfig marks a fatal startup configuration problem.
	ErrConfig = errors.New("config error")
)

// Transient wraps err as a TransientExchange error.
func Transient(msg string, err error) error {
	return wrap(ErrTransientExchange, msg, err)
}

// Permanent wraps err as a PermanentExchange error.
func Permanent(msg string, err error) error {
	return wrap(ErrPermanentExchange, msg, err)
}

// Validation wraps err as a ValidationError.
func Validation(msg string, err error) error {
	return wrap(ErrValidation, msg, err)
}

// Notifier wraps err as a NotifierError.
func Notifier(msg string, err error) error {
	return wrap(ErrNotifier, msg, err)
}

// Config wraps err as a ConfigError.
func Config(msg string, err error) error {
	return wrap(ErrConfig, msg, err)
}

func wrap(kind error, msg string, err error) error {
	if err == nil {
		return &taggedError{kind: kind, msg: msg}
	}
	return &taggedError{kind: kind, msg: msg, cause: err}
}

type taggedError struct {
	kind  error
	msg   string
	cause error
}

func (e *taggedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *taggedError) Unwrap() error {
	if e.cause == nil {
		return e.kind
	}
	return e.cause
}

// Is lets errors.Is(err, xerr.ErrTransientExchange) match regardless of the
// wrapped cause, since Unwrap() normally returns the cause, not the kind.
func (e *taggedError) Is(target error) bool {
	return target == e.kind
}
