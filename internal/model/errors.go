package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-distinguishable class of a terminal failure.
type ErrorKind string

const (
	KindExtractionFailure ErrorKind = "extraction_failure"
	KindUnsupportedPage   ErrorKind = "unsupported_page"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInvalidParameter  ErrorKind = "invalid_parameter"
	KindProviderAuth      ErrorKind = "provider_auth"
	KindProviderRateLimit ErrorKind = "provider_rate_limit"
	KindProviderNetwork   ErrorKind = "provider_network"
	KindProvider          ErrorKind = "provider_error"
	KindStorage           ErrorKind = "storage"
	KindCancelled         ErrorKind = "cancelled"
)

// Error carries a kind, the failing operation and a short human-readable reason.
type Error struct {
	Kind   ErrorKind
	Op     string
	ID     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" (id %s)", e.ID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind from err, or "" when err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k ErrorKind) bool {
	return err != nil && KindOf(err) == k
}

// StorageError wraps a persistence failure with the operation and document id.
func StorageError(op, id string, err error) error {
	return &Error{Kind: KindStorage, Op: op, ID: id, Err: err}
}
