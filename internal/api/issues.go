package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/issuegate/internal/apierror"
	"github.com/mattjoyce/issuegate/internal/upstream"
)

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var body CreateIssueRequest
	if aerr := decodeBody(r, &body); aerr != nil {
		apierror.Write(w, aerr)
		return
	}
	req, aerr := validateCreate(body)
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}

	issue, err := s.issues.CreateIssue(r.Context(), req)
	if err != nil {
		s.writeUpstreamError(w, r, "create issue", "Repo not found or no access", err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/issues/%d", issue.Number))
	apierror.WriteJSON(w, http.StatusCreated, issue)
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	opts, aerr := listOptions(r.URL.Query())
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}

	issues, header, err := s.issues.ListIssues(r.Context(), opts)
	if err != nil {
		s.writeUpstreamError(w, r, "list issues", "", err)
		return
	}
	if issues == nil {
		issues = []upstream.Issue{}
	}
	forwardPagination(w.Header(), header)
	apierror.WriteJSON(w, http.StatusOK, issues)
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	number, aerr := issueNumber(r)
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}

	issue, err := s.issues.GetIssue(r.Context(), number)
	if err != nil {
		s.writeUpstreamError(w, r, "get issue", issueNotFound(number), err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, issue)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	number, aerr := issueNumber(r)
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}
	var body UpdateIssueRequest
	if aerr := decodeBody(r, &body); aerr != nil {
		apierror.Write(w, aerr)
		return
	}
	req, aerr := validateUpdate(body)
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}

	issue, err := s.issues.UpdateIssue(r.Context(), number, req)
	if err != nil {
		s.writeUpstreamError(w, r, "update issue", issueNotFound(number), err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, issue)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	number, aerr := issueNumber(r)
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}
	var body CreateCommentRequest
	if aerr := decodeBody(r, &body); aerr != nil {
		apierror.Write(w, aerr)
		return
	}
	text, aerr := validateComment(body)
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}

	comment, err := s.issues.CreateComment(r.Context(), number, text)
	if err != nil {
		s.writeUpstreamError(w, r, "create comment", issueNotFound(number), err)
		return
	}
	apierror.WriteJSON(w, http.StatusCreated, comment)
}

// writeUpstreamError maps err onto the local taxonomy and writes the envelope.
// A non-empty notFound replaces upstream's message on a NotFound result; the
// upstream details are kept.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, op, notFound string, err error) {
	aerr := apierror.From(err)
	if aerr.Kind == apierror.NotFound && notFound != "" {
		aerr = apierror.WithDetails(aerr.Kind, notFound, aerr.Details)
	}
	s.logger.Warn("upstream call failed",
		"op", op,
		"kind", aerr.Kind,
		"status", aerr.Status(),
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
	apierror.Write(w, aerr)
}

func issueNotFound(number int) string {
	return fmt.Sprintf("Issue %d not found", number)
}
