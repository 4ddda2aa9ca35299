package apperr

import "errors"

// Legacy backend business codes. The table mirrors the backend error catalogue
// and must be updated together with it.
const (
	CodeUserNotFound    = 1002
	CodeInvalidInput    = 1003
	CodeUnauthenticated = 1006
	CodeForbidden       = 1007
	CodeTokenInvalid    = 1010
	CodeTokenExpired    = 1011
	statusBadRequest    = 400
	statusUnauthorized  = 401
	statusForbidden     = 403
	statusNotFound      = 404
)

// HTTPStatus maps the error to an HTTP status independent of the transport
// status that produced it. Server errors use the legacy business-code table;
// unauthorized errors map to 401; everything else has no status (0).
func (e *Error) HTTPStatus() int {
	if e == nil {
		return 0
	}
	switch e.Kind {
	case KindServer:
		switch e.Code {
		case CodeUnauthenticated, CodeTokenInvalid, CodeTokenExpired:
			return statusUnauthorized
		case CodeForbidden:
			return statusForbidden
		case CodeUserNotFound:
			return statusNotFound
		default:
			return statusBadRequest
		}
	case KindUnauthorized:
		return statusUnauthorized
	default:
		return 0
	}
}

// IsUnauthorizedServer reports whether err is a server error whose code or
// mapped status says the session was rejected.
func IsUnauthorizedServer(err error) bool {
	var e *Error
	if !errors.As(err, &e) || e == nil || e.Kind != KindServer {
		return false
	}
	return e.Code == statusUnauthorized || e.HTTPStatus() == statusUnauthorized
}

// AlertCategory groups errors the way the presentation layer raises alerts.
type AlertCategory string

const (
	AlertNetwork AlertCategory = "network"
	AlertAuth    AlertCategory = "auth"
	AlertData    AlertCategory = "data"
	AlertGeneral AlertCategory = "general"
)

// CategoryOf returns the alert category for err.
func CategoryOf(err error) AlertCategory {
	switch KindOf(err) {
	case KindNetwork:
		return AlertNetwork
	case KindUnauthorized:
		return AlertAuth
	case KindDecoding:
		return AlertData
	case KindServer:
		if IsUnauthorizedServer(err) {
			return AlertAuth
		}
		return AlertGeneral
	default:
		return AlertGeneral
	}
}
