package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an [Error].
type Kind uint8

const (
	// KindUnknown is used for failures that fit no other kind.
	KindUnknown Kind = iota
	// KindNetwork marks transport failures (DNS, connect, timeout, cancel).
	KindNetwork
	// KindServer marks a non-2xx response decoded into a backend code and message.
	KindServer
	// KindDecoding marks a 2xx response whose body could not be decoded.
	KindDecoding
	// KindUnauthorized marks an expired or rejected session.
	KindUnauthorized
	// KindValidation marks input rejected locally before any network call.
	KindValidation
)

// String returns the lower-case name of k.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindDecoding:
		return "decoding"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	// ErrNetwork matches every [KindNetwork] error via errors.Is.
	ErrNetwork = errors.New("network error")
	// ErrServer matches every [KindServer] error via errors.Is.
	ErrServer = errors.New("server error")
	// ErrDecoding matches every [KindDecoding] error via errors.Is.
	ErrDecoding = errors.New("decoding error")
	// ErrUnauthorized matches every [KindUnauthorized] error via errors.Is.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation matches every [KindValidation] error via errors.Is.
	ErrValidation = errors.New("validation error")
	// ErrUnknown matches every [KindUnknown] error via errors.Is.
	ErrUnknown = errors.New("unknown error")
)

// Error is the canonical failure returned by authcore operations.
//
// Message is taken verbatim from the backend for server errors. Cause is kept
// for logging and errors.Is/As traversal only.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

// Error formats the kind and message.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
	case KindDecoding:
		if e.Message == "" {
			return "decoding error"
		}
		return "decoding error: " + e.Message
	case KindUnknown:
		if e.Message == "" {
			return "unknown error"
		}
		return "unknown error: " + e.Message
	default:
		if e.Message == "" {
			return e.Kind.String()
		}
		return e.Kind.String() + ": " + e.Message
	}
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports kind equality against the package sentinels and other *Error values.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	case ErrDecoding:
		return e.Kind == KindDecoding
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	var other *Error
	if errors.As(target, &other) && other != nil {
		return other.Kind == e.Kind && other.Code == e.Code && other.Message == e.Message
	}
	return false
}

// Network builds a [KindNetwork] error.
func Network(message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Cause: cause}
}

// Server builds a [KindServer] error with the backend code and message.
func Server(code int, message string) *Error {
	return &Error{Kind: KindServer, Code: code, Message: message}
}

// Decoding builds a [KindDecoding] error.
func Decoding(cause error) *Error {
	e := &Error{Kind: KindDecoding, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// Unauthorized builds a [KindUnauthorized] error.
func Unauthorized(message string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Cause: cause}
}

// Validation builds a [KindValidation] error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Unknown wraps an unclassified failure.
func Unknown(cause error) *Error {
	e := &Error{Kind: KindUnknown, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// KindOf returns the kind of err, or KindUnknown when err is not an [*Error].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return KindUnknown
}

// As returns err as an [*Error], wrapping foreign errors as [KindUnknown].
// A nil err returns nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e
	}
	return Unknown(err)
}
