package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/issuegate/internal/apierror"
	"github.com/mattjoyce/issuegate/internal/eventlog"
	"github.com/mattjoyce/issuegate/internal/upstream"
)

// maxRequestBody bounds JSON bodies on the issue routes.
const maxRequestBody = 1 << 20

const (
	defaultPerPage     = 30
	maxPerPage         = 100
	defaultEventsLimit = 20
	maxEventsLimit     = 100
)

func invalidField(field, reason string) *apierror.Error {
	return apierror.WithDetails(apierror.BadRequest, fmt.Sprintf("invalid %s: %s", field, reason), map[string]any{
		"field":  field,
		"reason": reason,
	})
}

// decodeBody reads a single JSON object from r into v.
func decodeBody(r *http.Request, v any) *apierror.Error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		reason := "malformed JSON"
		if errors.Is(err, io.EOF) {
			reason = "empty body"
		}
		return apierror.WithDetails(apierror.BadRequest, "Invalid request payload", map[string]any{"reason": reason})
	}
	if dec.More() {
		return apierror.WithDetails(apierror.BadRequest, "Invalid request payload", map[string]any{"reason": "trailing data after JSON object"})
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validateCreate(req CreateIssueRequest) (upstream.CreateIssueRequest, *apierror.Error) {
	if req.Title == nil || blank(*req.Title) {
		return upstream.CreateIssueRequest{}, invalidField("title", "title is required")
	}
	for i, l := range req.Labels {
		if blank(l) {
			return upstream.CreateIssueRequest{}, invalidField("labels", fmt.Sprintf("label %d is empty", i))
		}
	}
	return upstream.CreateIssueRequest{Title: *req.Title, Body: req.Body, Labels: req.Labels}, nil
}

func validateUpdate(req UpdateIssueRequest) (upstream.UpdateIssueRequest, *apierror.Error) {
	if req.Title != nil && blank(*req.Title) {
		return upstream.UpdateIssueRequest{}, invalidField("title", "title must not be empty")
	}
	if req.State != nil && *req.State != upstream.StateOpen && *req.State != upstream.StateClosed {
		return upstream.UpdateIssueRequest{}, invalidField("state", "must be one of open, closed")
	}
	return upstream.UpdateIssueRequest{Title: req.Title, Body: req.Body, State: req.State}, nil
}

func validateComment(req CreateCommentRequest) (string, *apierror.Error) {
	if req.Body == nil || blank(*req.Body) {
		return "", invalidField("body", "comment body is required")
	}
	return *req.Body, nil
}

// issueNumber reads the {number} path parameter.
func issueNumber(r *http.Request) (int, *apierror.Error) {
	raw := chi.URLParam(r, "number")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalidField("number", "must be an integer >= 1")
	}
	return n, nil
}

// intParam parses an optional integer query value within [lo, hi].
func intParam(q url.Values, name string, def, lo, hi int) (int, *apierror.Error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(name, "must be an integer")
	}
	if n < lo || (hi > 0 && n > hi) {
		if hi > 0 {
			return 0, invalidField(name, fmt.Sprintf("must be between %d and %d", lo, hi))
		}
		return 0, invalidField(name, fmt.Sprintf("must be >= %d", lo))
	}
	return n, nil
}

func listOptions(q url.Values) (upstream.ListIssuesOptions, *apierror.Error) {
	opts := upstream.ListIssuesOptions{State: upstream.StateOpen, Labels: q.Get("labels")}

	switch state := q.Get("state"); state {
	case "":
	case upstream.StateOpen, upstream.StateClosed, upstream.StateAll:
		opts.State = state
	default:
		return opts, invalidField("state", "must be one of open, closed, all")
	}

	var aerr *apierror.Error
	if opts.Page, aerr = intParam(q, "page", 1, 1, 0); aerr != nil {
		return opts, aerr
	}
	if opts.PerPage, aerr = intParam(q, "per_page", defaultPerPage, 1, maxPerPage); aerr != nil {
		return opts, aerr
	}
	return opts, nil
}

func eventListOptions(q url.Values) (eventlog.ListOptions, *apierror.Error) {
	var opts eventlog.ListOptions
	var aerr *apierror.Error
	if opts.Limit, aerr = intParam(q, "limit", defaultEventsLimit, 1, maxEventsLimit); aerr != nil {
		return opts, aerr
	}
	if raw := q.Get("include_payload"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, invalidField("include_payload", "must be a boolean")
		}
		opts.IncludePayload = v
	}
	return opts, nil
}
