package client

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindTransport means the request never got a response.
	KindTransport Kind = iota + 1
	// KindSession means the server redirected or rejected the CSRF token,
	// which happens when the login session is gone.
	KindSession
	// KindNotJSON means the server answered with something other than JSON.
	KindNotJSON
	// KindValidation carries field errors from a 422 response.
	KindValidation
	// KindStatus is any other unsuccessful response.
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindSession:
		return "session"
	case KindNotJSON:
		return "not_json"
	case KindValidation:
		return "validation"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

const (
	transportMessage = "Could not reach the server. Check your connection and try again."
	sessionMessage   = "Your session has expired. Please refresh the page and try again."
	notJSONMessage   = "Unexpected response from the server. Please refresh the page to see the current state."
)

// statusMessages are shown for failures the server did not explain.
var statusMessages = map[int]string{
	http.StatusUnauthorized:        "You are not signed in. Please refresh the page and sign in again.",
	http.StatusForbidden:           "You are not allowed to do that.",
	http.StatusNotFound:            "This item no longer exists. It may have been deleted.",
	http.StatusUnprocessableEntity: "Please check the form for errors.",
	http.StatusTooManyRequests:     "Too many requests. Please wait a moment and try again.",
	http.StatusInternalServerError: "The server had a problem. Please try again.",
	http.StatusServiceUnavailable:  "The service is temporarily unavailable. Please try again later.",
}

// StatusMessage returns the message for an HTTP status, or fallback when
// the status has none.
func StatusMessage(status int, fallback string) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fallback
}

// Error is returned for every failed API call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("api: ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is the text to show in an alert. Validation errors list every
// field message; other kinds use fixed texts, and unknown statuses fall
// back to the server's message or to fallback.
func (e *Error) UserMessage(fallback string) string {
	switch e.Kind {
	case KindTransport:
		return transportMessage
	case KindSession:
		return sessionMessage
	case KindNotJSON:
		return notJSONMessage
	case KindValidation:
		if msgs := e.FieldMessages(); len(msgs) > 0 {
			return strings.Join(msgs, "\n")
		}
	}
	if msg, ok := statusMessages[e.Status]; ok {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return fallback
}

// FieldMessages flattens field errors in field order.
func (e *Error) FieldMessages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, e.Fields[k]...)
	}
	return out
}
