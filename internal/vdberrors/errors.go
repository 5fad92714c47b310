package vdberrors

import "fmt"

// Error is the structured error type for vectorcore. It carries enough
// context for a caller to log, classify, and (for EmbeddingFailure)
// decide whether to retry.
type Error struct {
	// Kind classifies the failure per spec section 7.
	Kind Kind

	// Code is a stable machine-readable identifier for logs/metrics.
	Code string

	// Message is the human-readable description.
	Message string

	// Details carries additional key-value context (e.g. "library_id").
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether the same operation might succeed if
	// retried unchanged (true only for transient external failures).
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an Error of the given kind. Code and retryability are
// derived from the kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Code:      codeForKind[kind],
		Message:   message,
		Cause:     cause,
		Retryable: retryableKinds[kind],
	}
}

// Wrap creates an Error of the given kind from an existing error,
// using its message. Returns nil if err is nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// NotFound builds a KindNotFound error, e.g. for an unknown library id.
func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

// AlreadyExists builds a KindAlreadyExists error.
func AlreadyExists(message string) *Error { return New(KindAlreadyExists, message, nil) }

// InvalidRequest builds a KindInvalidRequest error.
func InvalidRequest(message string) *Error { return New(KindInvalidRequest, message, nil) }

// InvalidFilter builds a KindInvalidFilter error.
func InvalidFilter(message string) *Error { return New(KindInvalidFilter, message, nil) }

// InvalidVector builds a KindInvalidVector error.
func InvalidVector(message string) *Error { return New(KindInvalidVector, message, nil) }

// DimensionMismatch builds a KindDimensionMismatch error reporting the
// expected and actual dimension.
func DimensionMismatch(expected, got int) *Error {
	return New(KindDimensionMismatch,
		fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got), nil).
		WithDetail("expected", fmt.Sprintf("%d", expected)).
		WithDetail("got", fmt.Sprintf("%d", got))
}

// EmbeddingFailure builds a KindEmbeddingFailure error wrapping cause.
func EmbeddingFailure(cause error) *Error {
	return Wrap(KindEmbeddingFailure, cause)
}

// ConfigError builds a KindConfig error.
func ConfigError(message string, cause error) *Error {
	return New(KindConfig, message, cause)
}

// Internal builds a KindInternal error for invariant violations.
func Internal(message string) *Error { return New(KindInternal, message, nil) }

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Retryable
}

// GetKind extracts the Kind from err, or "" if err is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}
