// Package webhook receives signed event deliveries from the upstream issue
// tracker and records them in the event log.
//
// # Request Flow
//
//  1. X-GitHub-Event and X-GitHub-Delivery must be present (400 otherwise)
//  2. Body read raw, capped at the configured size
//  3. X-Hub-Signature-256 checked against HMAC-SHA256 of the raw bytes (401 on mismatch)
//  4. Body decoded as a JSON object; anything else is treated as {}
//  5. Event type checked against issues, issue_comment, ping (400 otherwise)
//  6. Row inserted keyed on (delivery_id, action); repeats are ignored
//  7. 204 No Content
//
// A failed insert is logged and the delivery is still acknowledged, so the
// sender never retries a delivery that already passed verification.
//
// # Example Usage
//
//	store, _ := eventlog.Open(ctx, "./data/events.db", eventlog.Options{})
//	p := webhook.NewPipeline(os.Getenv("WEBHOOK_SECRET"), store, nil, logger)
//	r.Post("/webhook", p.Handler(webhook.DefaultMaxBodySize))
package webhook
