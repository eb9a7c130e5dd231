package request

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure. Only NetworkTransient and RiskControl
// are retried by the executor; everything else surfaces immediately.
type Kind int

const (
	KindNetworkTransient Kind = iota
	KindRiskControl
	KindAuthRejected
	KindValidation
	KindRemoteBusiness
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindNetworkTransient:
		return "network_transient"
	case KindRiskControl:
		return "risk_control"
	case KindAuthRejected:
		return "auth_rejected"
	case KindValidation:
		return "validation"
	case KindRemoteBusiness:
		return "remote_business"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Retryable reports whether the executor may retry this kind of failure.
func (k Kind) Retryable() bool {
	return k == KindNetworkTransient || k == KindRiskControl
}

// Error is the structured failure type returned by the executor and by the
// components built on top of it.
type Error struct {
	Kind       Kind
	HTTPStatus int    // 0 when the failure happened below HTTP
	Code       int64  // platform business code, 0 when not present
	Message    string // remote-supplied or local description
	Attempts   int    // transport attempts performed
	Exhausted  bool   // true when the retry budget ran out on a retryable failure
	cause      error
}

func (e *Error) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s: retries exhausted after %d attempts: %s", e.Kind, e.Attempts, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError creates an Error with the given kind and message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation creates a caller-input error, never sent over the wire.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Business creates a domain-level failure carrying the remote message.
func Business(code int64, message string) *Error {
	return &Error{Kind: KindRemoteBusiness, Code: code, Message: message}
}

// Persistence wraps a credential-storage failure.
func Persistence(err error) *Error {
	return &Error{Kind: KindPersistence, Message: err.Error(), cause: err}
}

// IsKind reports whether err is a request Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

// As extracts a request Error from an error chain.
func As(err error) (*Error, bool) {
	var re *Error
	ok := errors.As(err, &re)
	return re, ok
}
