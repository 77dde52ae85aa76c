package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so transports can map it without inspecting messages
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindInternal           Kind = "Internal"
)

// Sentinels usable with errors.Is
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrInternal           = &Error{Kind: KindInternal}
)

// Error is the error type returned by the repository layer and the request decoders
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on Kind so that every *Error of a kind matches its sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound creates a NotFound error
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument creates an InvalidArgument error
func InvalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a store error that indicates the backend could not be reached
func Unavailable(op string, err error) error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Message: "storage unavailable", Err: err}
}

// Internal wraps an unexpected store failure
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of err, defaulting to Internal for foreign errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human readable part of err without the op prefix
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch {
		case e.Message != "" && e.Err != nil && e.Kind != KindStorageUnavailable:
			return e.Message + ": " + e.Err.Error()
		case e.Message != "":
			return e.Message
		case e.Err != nil:
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	return err.Error()
}

// HTTPStatus maps a kind to its response status
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
