package media

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindDecode                ErrorKind = "decode"
	KindUnsupportedFormat     ErrorKind = "unsupported_format"
	KindCapabilityUnavailable ErrorKind = "capability_unavailable"
	KindEncode                ErrorKind = "encode"
)

// Error carries a kind and a human-readable reason.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err (which may be nil) with a kind and reason.
func NewError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Errorf is NewError with a formatted reason.
func Errorf(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" when
// err is not a classified pipeline failure.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
