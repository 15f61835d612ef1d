package upstream

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-github/v57/github"
)

const genericMessage = "GitHub error"

// Error describes a failed upstream call. Status is zero when no HTTP
// response was received (timeout, connection failure).
type Error struct {
	Status  int
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "github: " + e.Message
	}
	return fmt.Sprintf("github: %d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// newError builds an Error from whatever go-github handed back. resp may be
// nil for transport failures.
func newError(resp *github.Response, err error) *Error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	msg := upstreamMessage(resp, err)
	return &Error{
		Status:  status,
		Message: msg,
		Details: map[string]any{
			"github_status":  status,
			"github_message": msg,
		},
		cause: err,
	}
}

// upstreamMessage prefers the JSON "message" field, then the raw body text,
// then a generic fallback.
func upstreamMessage(resp *github.Response, err error) string {
	var (
		errResp  *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		twoFAErr *github.TwoFactorAuthError
	)
	switch {
	case errors.As(err, &errResp) && errResp.Message != "":
		return errResp.Message
	case errors.As(err, &rateErr) && rateErr.Message != "":
		return rateErr.Message
	case errors.As(err, &abuseErr) && abuseErr.Message != "":
		return abuseErr.Message
	case errors.As(err, &twoFAErr) && twoFAErr.Message != "":
		return twoFAErr.Message
	}

	if resp != nil && resp.Response != nil && resp.Body != nil && resp.StatusCode >= 300 {
		if b, readErr := io.ReadAll(resp.Body); readErr == nil {
			if text := strings.TrimSpace(string(b)); text != "" {
				return text
			}
		}
	}

	if resp == nil && err != nil {
		return "upstream request failed: " + err.Error()
	}
	return genericMessage
}
