package api

// CreateIssueRequest is the JSON body for POST /issues.
// Title is a pointer so a missing field and an empty one are both caught.
type CreateIssueRequest struct {
	Title  *string  `json:"title"`
	Body   *string  `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// UpdateIssueRequest is the JSON body for PATCH /issues/{number}.
type UpdateIssueRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
	State *string `json:"state,omitempty"`
}

// CreateCommentRequest is the JSON body for POST /issues/{number}/comments.
type CreateCommentRequest struct {
	Body *string `json:"body"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
