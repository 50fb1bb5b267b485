package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// User-facing messages produced by Describe.
const (
	MsgJobNotFound = "Job not found. The server may have restarted."
	MsgServerError = "Server error. Check backend logs."

	unreachableFormat = "Cannot reach the API. Make sure the backend is running (e.g. %s)."
)

// Kind is the closed set of failure shapes a remote call can produce.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindServer
	KindUnreachable
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindServer:
		return "server"
	case KindUnreachable:
		return "unreachable"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Op     string
	Code   int
	Detail string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %s: status %d: %s", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("api: %s: status %d", e.Op, e.Code)
}

// TransportError means no response was received at all.
type TransportError struct {
	Op      string
	BaseURL string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PayloadError means the service answered 2xx with a body we cannot use.
type PayloadError struct {
	Op  string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("api: %s: unexpected payload: %v", e.Op, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// Detailer is implemented by errors that carry a message meant for users.
type Detailer interface {
	Detail() string
}

func newStatusError(op string, code int, body []byte) *StatusError {
	text := strings.TrimSpace(string(body))
	return &StatusError{Op: op, Code: code, Detail: ParseDetail(body), Body: text}
}

// ParseDetail extracts a string "detail" field from a JSON error body. Non
// string details (validation lists) are ignored.
func ParseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}

// Classify decides the failure kind of err once, at the boundary.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusNotFound:
			return KindNotFound
		case se.Code >= http.StatusInternalServerError:
			return KindServer
		default:
			return KindRejected
		}
	}
	var te *TransportError
	if errors.As(err, &te) {
		return KindUnreachable
	}
	return KindUnknown
}

// Describe converts err into the single human-readable string shown to users.
// fallback is used when nothing more specific is known.
func Describe(err error, fallback string) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindNotFound:
		return MsgJobNotFound
	case KindServer:
		var se *StatusError
		errors.As(err, &se)
		if se.Detail != "" {
			return se.Detail
		}
		return MsgServerError
	case KindUnreachable:
		var te *TransportError
		errors.As(err, &te)
		return UnreachableMessage(te.BaseURL)
	case KindRejected:
		var se *StatusError
		errors.As(err, &se)
		if se.Detail != "" {
			return se.Detail
		}
		return fallback
	}
	if errors.Is(err, context.Canceled) {
		return fallback
	}
	var d Detailer
	if errors.As(err, &d) {
		if detail := strings.TrimSpace(d.Detail()); detail != "" {
			return detail
		}
	}
	return fallback
}

// UnreachableMessage is the guidance shown when the service cannot be reached.
func UnreachableMessage(baseURL string) string {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf(unreachableFormat, base)
}
