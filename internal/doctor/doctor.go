// Package doctor checks that an issuegate deployment can start and reach
// its upstream repository.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mattjoyce/issuegate/internal/config"
	"github.com/mattjoyce/issuegate/internal/storage"
)

// Exit codes for the check command.
const (
	ExitOK       = 0
	ExitUpstream = 1
	ExitConfig   = 2
)

// Issue categories.
const (
	CategoryConfig   = "config"
	CategoryStorage  = "storage"
	CategoryUpstream = "upstream"
)

// minSecretLen is the shortest webhook secret accepted without a warning.
const minSecretLen = 16

var rateLimitHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}

// Prober makes one authenticated call to the upstream repository.
type Prober interface {
	Probe(ctx context.Context) (*http.Response, error)
}

// Result holds the outcome of a check run.
type Result struct {
	Valid    bool            `json:"valid"`
	Errors   []Issue         `json:"errors,omitempty"`
	Warnings []Issue         `json:"warnings,omitempty"`
	Storage  *StorageReport  `json:"storage,omitempty"`
	Upstream *UpstreamReport `json:"upstream,omitempty"`
}

// Issue describes a single error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// StorageReport describes the filesystem under the event database.
type StorageReport struct {
	Path       string `json:"path"`
	Filesystem string `json:"filesystem,omitempty"`
	Network    bool   `json:"network"`
}

// UpstreamReport describes the probe call.
type UpstreamReport struct {
	Repository string            `json:"repository"`
	Status     int               `json:"status"`
	RateLimit  map[string]string `json:"rate_limit,omitempty"`
	Hint       string            `json:"hint,omitempty"`
}

// Doctor runs deployment checks.
type Doctor struct {
	cfg     *config.Config
	prober  Prober
	inspect func(string) (storage.FilesystemReport, error)
}

// New creates a Doctor. prober may be nil when no client could be built, in
// which case the upstream check is skipped.
func New(cfg *config.Config, prober Prober) *Doctor {
	return &Doctor{cfg: cfg, prober: prober, inspect: storage.InspectFilesystem}
}

// Run performs every check and returns the combined result.
func (d *Doctor) Run(ctx context.Context) *Result {
	r := &Result{}

	d.checkConfig(r)
	d.checkStorage(r)
	if len(r.Errors) == 0 {
		d.checkUpstream(ctx, r)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

// ExitCode maps the result onto the check command's exit status.
// Local problems win over upstream ones.
func (r *Result) ExitCode() int {
	code := ExitOK
	for _, e := range r.Errors {
		if e.Category != CategoryUpstream {
			return ExitConfig
		}
		code = ExitUpstream
	}
	return code
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) checkConfig(r *Result) {
	if err := d.cfg.Validate(); err != nil {
		for _, e := range flatten(err) {
			d.addError(r, CategoryConfig, "", e.Error())
		}
	}

	if s := d.cfg.Webhook.Secret; s != "" && len(s) < minSecretLen {
		d.addWarning(r, CategoryConfig, "webhook.secret",
			fmt.Sprintf("webhook secret is shorter than %d characters", minSecretLen))
	}
	if dir := d.cfg.Server.PublicDir; dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			d.addWarning(r, CategoryConfig, "server.public_dir",
				fmt.Sprintf("public dir %q does not exist; /public/ will not be served", dir))
		}
	}
}

func (d *Doctor) checkStorage(r *Result) {
	path := d.cfg.State.Path
	if path == "" {
		return
	}
	report, err := d.inspect(path)
	r.Storage = &StorageReport{Path: path, Filesystem: report.Type, Network: report.Network}
	if err != nil {
		d.addWarning(r, CategoryStorage, "state.path", fmt.Sprintf("could not determine filesystem: %v", err))
		return
	}
	if report.Network {
		d.addError(r, CategoryStorage, "state.path",
			fmt.Sprintf("database is on network filesystem %q; SQLite needs a local filesystem", report.Type))
	}
}

func (d *Doctor) checkUpstream(ctx context.Context, r *Result) {
	if d.prober == nil {
		d.addWarning(r, CategoryUpstream, "", "no upstream client; probe skipped")
		return
	}

	report := &UpstreamReport{Repository: d.cfg.GitHub.Owner + "/" + d.cfg.GitHub.Repo}
	r.Upstream = report

	resp, err := d.prober.Probe(ctx)
	if resp == nil {
		msg := "upstream unreachable"
		if err != nil {
			msg = fmt.Sprintf("upstream unreachable: %v", err)
		}
		d.addError(r, CategoryUpstream, "github.base_url", msg)
		return
	}

	report.Status = resp.StatusCode
	for _, h := range rateLimitHeaders {
		if v := resp.Header.Get(h); v != "" {
			if report.RateLimit == nil {
				report.RateLimit = map[string]string{}
			}
			report.RateLimit[h] = v
		}
	}
	if report.RateLimit["X-RateLimit-Remaining"] == "0" {
		d.addWarning(r, CategoryUpstream, "", "rate limit exhausted until X-RateLimit-Reset")
	}

	if err == nil && resp.StatusCode < http.StatusMultipleChoices {
		return
	}
	report.Hint = hintFor(resp.StatusCode)
	msg := fmt.Sprintf("probe returned HTTP %d", resp.StatusCode)
	if err != nil {
		msg = fmt.Sprintf("probe failed: %v", err)
	}
	d.addError(r, CategoryUpstream, "", msg)
}

func hintFor(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "token was rejected; check GITHUB_TOKEN is current"
	case http.StatusForbidden:
		return "token lacks access to issues or the rate limit is exhausted; check the token's repository permissions"
	case http.StatusNotFound:
		return "repository not found or not visible to this token; check GITHUB_OWNER and GITHUB_REPO"
	default:
		return ""
	}
}

// flatten expands an errors.Join result into its parts.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// FormatHuman returns a human-readable check report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Upstream != nil && r.Upstream.Status != 0 {
		fmt.Fprintf(&b, "Upstream %s: HTTP %d\n", r.Upstream.Repository, r.Upstream.Status)
		for _, h := range rateLimitHeaders {
			if v, ok := r.Upstream.RateLimit[h]; ok {
				fmt.Fprintf(&b, "  %s: %s\n", h, v)
			}
		}
	}
	if r.Storage != nil && r.Storage.Filesystem != "" {
		fmt.Fprintf(&b, "Storage %s: %s\n", r.Storage.Path, r.Storage.Filesystem)
	}

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Check passed.\n")
	case r.Valid:
		fmt.Fprintf(&b, "Check passed (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Check failed (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	if r.Upstream != nil && r.Upstream.Hint != "" {
		fmt.Fprintf(&b, "  HINT  %s\n", r.Upstream.Hint)
	}

	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
	} else {
		fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
	}
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
