// Package fault defines the typed error taxonomy shared by the pipeline
// engine. The orchestrator decides retry vs. terminal transition purely from
// the error kind; no other component writes job state.
package fault

import (
	"errors"
	"fmt"
)

// Kind labels one class of failure.
type Kind string

const (
	// KindConfig covers invalid pipeline definitions and missing template
	// placeholders. Fatal, never retried.
	KindConfig Kind = "config"

	// KindModel covers timeouts, rate limits, 5xx responses and malformed
	// bodies from external services. Retried via the fallback chain and
	// then the job-level retry budget.
	KindModel Kind = "model"

	// KindValidation covers step output that fails shape or enum checks.
	// Surfaced immediately, not retried.
	KindValidation Kind = "validation"

	// KindFatal covers unrecoverable states such as an empty pipeline or
	// a corrupted job record.
	KindFatal Kind = "fatal"
)

// Error is a typed pipeline failure.
type Error struct {
	Kind Kind
	Op   string // component or step that produced the error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config wraps err as a configuration error.
func Config(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// Configf builds a configuration error from a format string.
func Configf(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

// Model wraps err as an external-service error.
func Model(op string, err error) *Error {
	return &Error{Kind: KindModel, Op: op, Err: err}
}

// Modelf builds an external-service error from a format string.
func Modelf(op, format string, args ...any) *Error {
	return &Error{Kind: KindModel, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation wraps err as a step output validation error.
func Validation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Validationf builds a validation error from a format string.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Fatalf builds a fatal error from a format string.
func Fatalf(op, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or KindFatal for errors that were not
// produced through this package. An unclassified error aborts the job rather
// than burning retries on something we do not understand.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindFatal
}

// Retryable reports whether err is worth another attempt. Only external
// service failures are; retrying an identical prompt after a validation
// failure is unlikely to change a structurally wrong answer.
func Retryable(err error) bool {
	return KindOf(err) == KindModel
}
