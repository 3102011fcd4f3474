package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	ConfigMissing
	UpstreamRequestFailed
	TransformFailed
	UnknownFieldType
	InvalidFieldValue
	StoreFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigMissing:
		return "config_missing"
	case UpstreamRequestFailed:
		return "upstream_request_failed"
	case TransformFailed:
		return "transform_failed"
	case UnknownFieldType:
		return "unknown_field_type"
	case InvalidFieldValue:
		return "invalid_field_value"
	case StoreFailed:
		return "store_failed"
	default:
		return "unknown"
	}
}

// Error is a failure of one step of an operation, tagged with its kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether any *Error in err's tree has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsKind(x.Unwrap(), kind)
	}
	return false
}
