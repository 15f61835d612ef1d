package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/issuegate/internal/apierror"
	"github.com/mattjoyce/issuegate/internal/eventlog"
	"github.com/mattjoyce/issuegate/internal/events"
	"github.com/mattjoyce/issuegate/internal/log"
)

// NoticeStored is the hub kind published for every freshly stored delivery.
const NoticeStored = "delivery.stored"

// Stage is a step of the ingestion state machine.
type Stage string

const (
	StageReceived     Stage = "received"
	StageVerified     Stage = "verified"
	StageParsed       Stage = "parsed"
	StageClassified   Stage = "classified"
	StageStored       Stage = "stored"
	StageAcknowledged Stage = "acknowledged"
	StageRejected     Stage = "rejected"
)

// SupportedEvents is the event-type allow-list.
var SupportedEvents = []string{"issues", "issue_comment", "ping"}

// EventStore is the persistence the pipeline writes to.
type EventStore interface {
	Insert(ctx context.Context, ev eventlog.Event) (bool, error)
}

// Notifier receives a notice for each newly stored delivery.
type Notifier interface {
	Publish(kind string, data any) events.Notice
}

// Delivery is one inbound webhook request as received.
type Delivery struct {
	Event      string
	DeliveryID string
	Signature  string
	Body       []byte
}

// Outcome describes how far a delivery got.
type Outcome struct {
	Stage       Stage
	Action      string
	IssueNumber *int64
	// Stored is true only when a new row was written.
	Stored bool
	Digest string
}

// Pipeline verifies, classifies and records webhook deliveries.
type Pipeline struct {
	secret  string
	store   EventStore
	notify  Notifier
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewPipeline builds a Pipeline. notify may be nil.
func NewPipeline(secret string, store EventStore, notify Notifier, logger *slog.Logger) *Pipeline {
	allowed := make(map[string]struct{}, len(SupportedEvents))
	for _, e := range SupportedEvents {
		allowed[e] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		secret:  secret,
		store:   store,
		notify:  notify,
		allowed: allowed,
		logger:  logger,
	}
}

// Ingest runs one delivery through the pipeline. A non-nil error is always an
// *apierror.Error describing a rejection. Storage failures are logged and the
// delivery is still acknowledged.
func (p *Pipeline) Ingest(ctx context.Context, d Delivery) (Outcome, error) {
	out := Outcome{Stage: StageReceived, Digest: digest(d.Body)}
	logger := log.WithDelivery(p.logger, d.DeliveryID).With("event", d.Event, "payload_blake3", out.Digest)

	if !VerifySignature(d.Body, d.Signature, p.secret) {
		logger.Warn("webhook signature verification failed")
		out.Stage = StageRejected
		return out, apierror.New(apierror.InvalidSignature, "HMAC verification failed")
	}
	out.Stage = StageVerified

	payload := parsePayload(d.Body)
	if payload == nil {
		logger.Warn("webhook payload is not a JSON object; storing as empty")
		payload = map[string]any{}
	}
	out.Stage = StageParsed

	if _, ok := p.allowed[d.Event]; !ok {
		logger.Info("webhook event not supported")
		out.Stage = StageRejected
		return out, apierror.New(apierror.UnsupportedEvent, fmt.Sprintf("Event '%s' not supported", d.Event))
	}
	out.Stage = StageClassified

	out.Action = actionOf(payload)
	out.IssueNumber = issueNumberOf(payload)
	logger = logger.With("action", out.Action)

	body := string(d.Body)
	ev := eventlog.Event{
		DeliveryID:  d.DeliveryID,
		Event:       d.Event,
		Action:      out.Action,
		IssueNumber: out.IssueNumber,
		Payload:     &body,
	}
	inserted, err := p.store.Insert(ctx, ev)
	if err != nil {
		logger.Error("event store write failed", "kind", apierror.StorageWriteError, "error", err)
	} else {
		out.Stored = inserted
		out.Stage = StageStored
		if inserted && p.notify != nil {
			p.notify.Publish(NoticeStored, storedNotice{
				DeliveryID:  d.DeliveryID,
				Event:       d.Event,
				Action:      out.Action,
				IssueNumber: out.IssueNumber,
				Digest:      out.Digest,
			})
		}
	}

	out.Stage = StageAcknowledged
	logger.Info("webhook acknowledged", "issue_number", out.IssueNumber, "duplicate", err == nil && !inserted)
	return out, nil
}

type storedNotice struct {
	DeliveryID  string `json:"delivery_id"`
	Event       string `json:"event"`
	Action      string `json:"action"`
	IssueNumber *int64 `json:"issue_number"`
	Digest      string `json:"payload_blake3"`
}

// parsePayload decodes body as a JSON object, returning nil if it is not one.
func parsePayload(body []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}
	return payload
}

func actionOf(payload map[string]any) string {
	switch v := payload["action"].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func issueNumberOf(payload map[string]any) *int64 {
	issue, ok := payload["issue"].(map[string]any)
	if !ok {
		return nil
	}
	num, ok := issue["number"].(json.Number)
	if !ok {
		return nil
	}
	n, err := num.Int64()
	if err != nil {
		return nil
	}
	return &n
}

func digest(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:8])
}
