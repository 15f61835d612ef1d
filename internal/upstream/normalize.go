package upstream

import (
	"encoding/json"
	"fmt"
)

// pullRequestKey marks items in the issues listing that are pull requests.
const pullRequestKey = "pull_request"

type rawIssue struct {
	Number    int               `json:"number"`
	HTMLURL   string            `json:"html_url"`
	State     string            `json:"state"`
	Title     string            `json:"title"`
	Body      *string           `json:"body"`
	Labels    []json.RawMessage `json:"labels"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// normalizeIssue keeps the declared Issue fields and drops everything else.
// Labels that are not objects with a string name are skipped.
func normalizeIssue(data json.RawMessage) (Issue, error) {
	var raw rawIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return Issue{}, fmt.Errorf("decode issue: %w", err)
	}

	labels := make([]Label, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(l, &obj); err != nil || obj == nil {
			continue
		}
		rawName, ok := obj["name"]
		if !ok || string(rawName) == "null" {
			continue
		}
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil {
			continue
		}
		labels = append(labels, Label{Name: name})
	}

	return Issue{
		Number:    raw.Number,
		HTMLURL:   raw.HTMLURL,
		State:     raw.State,
		Title:     raw.Title,
		Body:      raw.Body,
		Labels:    labels,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}, nil
}

// normalizeIssueList drops pull requests, keyed on the presence of the
// marker field regardless of its value, and preserves upstream order.
func normalizeIssueList(items []json.RawMessage) ([]Issue, error) {
	issues := make([]Issue, 0, len(items))
	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return nil, fmt.Errorf("decode issue %d: %w", i, err)
		}
		if _, isPR := fields[pullRequestKey]; isPR {
			continue
		}
		issue, err := normalizeIssue(item)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func normalizeComment(data json.RawMessage) (Comment, error) {
	var c Comment
	if err := json.Unmarshal(data, &c); err != nil {
		return Comment{}, fmt.Errorf("decode comment: %w", err)
	}
	if c.User == nil {
		c.User = map[string]any{}
	}
	return c, nil
}
