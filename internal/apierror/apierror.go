// Package apierror defines the gateway's local error taxonomy, the JSON error
// envelope, and the single mapping from upstream failures onto that taxonomy.
package apierror

import (
	"errors"
	"net/http"

	"github.com/mattjoyce/issuegate/internal/upstream"
)

// Kind names a local error category. The string value is what clients see
// in the envelope's "error" field.
type Kind string

const (
	InvalidSignature  Kind = "InvalidSignature"
	UnsupportedEvent  Kind = "UnsupportedEvent"
	BadRequest        Kind = "BadRequest"
	Unauthorized      Kind = "Unauthorized"
	NotFound          Kind = "NotFound"
	GitHubError       Kind = "GitHubError"
	StorageWriteError Kind = "StorageWriteError"
)

var statusByKind = map[Kind]int{
	InvalidSignature:  http.StatusUnauthorized,
	UnsupportedEvent:  http.StatusBadRequest,
	BadRequest:        http.StatusBadRequest,
	Unauthorized:      http.StatusUnauthorized,
	NotFound:          http.StatusNotFound,
	GitHubError:       http.StatusBadGateway,
	StorageWriteError: http.StatusInternalServerError,
}

// Status returns the HTTP status for the kind. StorageWriteError never reaches
// a client; it has a status only so logging code can treat kinds uniformly.
func (k Kind) Status() int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusBadGateway
}

// Error is a failure ready to be rendered at the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int { return e.Kind.Status() }

// Envelope renders the error in the shared response shape.
func (e *Error) Envelope() Envelope {
	return Envelope{Error: string(e.Kind), Message: e.Message, Details: e.Details}
}

// Envelope is the body of every non-2xx JSON response.
type Envelope struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetails returns an Error of the given kind carrying details.
func WithDetails(kind Kind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// KindForStatus maps an upstream HTTP status onto a local kind:
// 401 and 403 are Unauthorized, 404 is NotFound, anything else (including 0
// for a request that never got a response) is GitHubError.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unauthorized
	case http.StatusNotFound:
		return NotFound
	default:
		return GitHubError
	}
}

// FromUpstream converts an upstream failure into a local error.
func FromUpstream(err *upstream.Error) *Error {
	return &Error{
		Kind:    KindForStatus(err.Status),
		Message: err.Message,
		Details: err.Details,
	}
}

// From converts any error into a local error. Local errors pass through,
// upstream errors go through FromUpstream, and anything else becomes a
// generic GitHubError.
func From(err error) *Error {
	var local *Error
	if errors.As(err, &local) {
		return local
	}
	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		return FromUpstream(uerr)
	}
	return New(GitHubError, "unexpected gateway failure")
}
