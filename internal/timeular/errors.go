package timeular

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a client failure for the REST layer.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindExternalService
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindExternalService:
		return "external_service"
	case KindNotFound:
		return "not_found"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

var (
	// ErrExternalService matches any error of kind KindExternalService.
	ErrExternalService = errors.New("external service error")
	// ErrActivityNotFound matches any error of kind KindNotFound.
	ErrActivityNotFound = errors.New("activity not found")
)

// Error is returned by every Client operation.
type Error struct {
	Op     string // client operation, e.g. "list_activities"
	Kind   ErrorKind
	Status int // upstream HTTP status, 0 when no response was received
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("timeular %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers test the kind with errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrExternalService:
		return e.Kind == KindExternalService
	case ErrActivityNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// KindOf classifies err. Errors not produced by this package count as
// external-service failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExternalService
}

func externalError(op string, status int, err error) *Error {
	return &Error{Op: op, Kind: KindExternalService, Status: status, Err: err}
}
