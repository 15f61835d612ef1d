package webhook

import (
	"io"
	"net/http"

	"github.com/mattjoyce/issuegate/internal/apierror"
)

// Delivery headers set by the sender.
const (
	EventHeader    = "X-GitHub-Event"
	DeliveryHeader = "X-GitHub-Delivery"
)

// DefaultMaxBodySize matches the sender's own payload cap.
const DefaultMaxBodySize int64 = 25 << 20

// Handler returns the HTTP endpoint for inbound deliveries. It answers 204 on
// acknowledgment and the error envelope otherwise.
func (p *Pipeline) Handler(maxBodySize int64) http.HandlerFunc {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	return func(w http.ResponseWriter, r *http.Request) {
		event := r.Header.Get(EventHeader)
		deliveryID := r.Header.Get(DeliveryHeader)

		var missing []string
		if event == "" {
			missing = append(missing, EventHeader)
		}
		if deliveryID == "" {
			missing = append(missing, DeliveryHeader)
		}
		if len(missing) > 0 {
			apierror.Write(w, apierror.WithDetails(apierror.BadRequest, "Invalid request payload",
				map[string]any{"missing_headers": missing}))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
		if err != nil {
			p.logger.Warn("failed to read webhook body", "delivery_id", deliveryID, "error", err)
			apierror.Write(w, apierror.New(apierror.BadRequest, "failed to read request body"))
			return
		}
		if int64(len(body)) > maxBodySize {
			apierror.Write(w, apierror.WithDetails(apierror.BadRequest, "payload too large",
				map[string]any{"max_body_size": maxBodySize}))
			return
		}

		_, err = p.Ingest(r.Context(), Delivery{
			Event:      event,
			DeliveryID: deliveryID,
			Signature:  r.Header.Get(SignatureHeader),
			Body:       body,
		})
		if err != nil {
			apierror.Write(w, apierror.From(err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
