package upstream

// Issue states accepted by the upstream API.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateAll    = "all"
)

// Label is the normalized label shape.
type Label struct {
	Name string `json:"name"`
}

// Issue is the normalized issue shape returned to gateway callers.
// Timestamps are passed through exactly as the upstream sent them.
type Issue struct {
	Number    int     `json:"number"`
	HTMLURL   string  `json:"html_url"`
	State     string  `json:"state"`
	Title     string  `json:"title"`
	Body      *string `json:"body"`
	Labels    []Label `json:"labels"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// Comment is the normalized issue comment shape.
type Comment struct {
	ID        int64          `json:"id"`
	Body      string         `json:"body"`
	User      map[string]any `json:"user"`
	CreatedAt string         `json:"created_at"`
	HTMLURL   string         `json:"html_url"`
}

// CreateIssueRequest is the body sent when opening an issue.
type CreateIssueRequest struct {
	Title  string   `json:"title"`
	Body   *string  `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// UpdateIssueRequest carries the fields to change; nil fields are left alone.
type UpdateIssueRequest struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
	State *string `json:"state,omitempty"`
}

// ListIssuesOptions selects a page of issues.
type ListIssuesOptions struct {
	State   string
	Labels  string // comma-separated label names
	Page    int
	PerPage int
}
