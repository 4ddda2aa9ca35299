package apperr

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

const defaultServerMessage = "server error"

// ProblemDetail is the RFC 7807 body the backend prefers for errors.
type ProblemDetail struct {
	Type     *string `json:"type,omitempty"`
	Title    *string `json:"title,omitempty"`
	Status   *int    `json:"status,omitempty"`
	Detail   *string `json:"detail,omitempty"`
	Instance *string `json:"instance,omitempty"`
	Code     *int    `json:"code,omitempty"`
}

func (p ProblemDetail) recognized() bool {
	return p.Type != nil || p.Title != nil || p.Status != nil || p.Detail != nil || p.Instance != nil
}

// Envelope is the legacy {code, message, result} wrapper.
type Envelope[T any] struct {
	Code    *int    `json:"code"`
	Message *string `json:"message,omitempty"`
	Result  *T      `json:"result,omitempty"`
}

// FromResponse converts a non-2xx response into a [KindServer] error.
//
// Order: RFC 7807 problem detail, then legacy envelope, then the raw body
// text. The backend message is used verbatim.
func FromResponse(status int, body []byte) *Error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var problem ProblemDetail
		if err := json.Unmarshal(trimmed, &problem); err == nil && problem.recognized() {
			message := defaultServerMessage
			switch {
			case problem.Detail != nil:
				message = *problem.Detail
			case problem.Title != nil:
				message = *problem.Title
			}
			code := status
			switch {
			case problem.Code != nil:
				code = *problem.Code
			case problem.Status != nil:
				code = *problem.Status
			}
			return Server(code, message)
		}

		var legacy Envelope[json.RawMessage]
		if err := json.Unmarshal(trimmed, &legacy); err == nil && legacy.Code != nil {
			message := defaultServerMessage
			if legacy.Message != nil {
				message = *legacy.Message
			}
			return Server(*legacy.Code, message)
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(status)
	}
	if message == "" {
		message = defaultServerMessage
	}
	return Server(status, message)
}
