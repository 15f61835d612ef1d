package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/issuegate/internal/apierror"
	"github.com/mattjoyce/issuegate/internal/eventlog"
	"github.com/mattjoyce/issuegate/internal/events"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	opts, aerr := eventListOptions(r.URL.Query())
	if aerr != nil {
		apierror.Write(w, aerr)
		return
	}

	rows, err := s.eventLog.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("event log read failed", "error", err)
		apierror.Write(w, apierror.New(apierror.GitHubError, "unexpected gateway failure"))
		return
	}
	if rows == nil {
		rows = []eventlog.Event{}
	}
	apierror.WriteJSON(w, http.StatusOK, rows)
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		apierror.Write(w, apierror.New(apierror.GitHubError, "streaming unsupported"))
		return
	}

	// The stream outlives the server's WriteTimeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	lastSeq := parseLastEventID(r.Header.Get("Last-Event-ID"))
	for _, n := range s.hub.Since(lastSeq) {
		if err := writeSSE(w, n); err != nil {
			return
		}
		lastSeq = n.Seq
	}
	flusher.Flush()

	keepAlive := time.NewTicker(s.config.StreamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			if n.Seq <= lastSeq {
				continue
			}
			if err := writeSSE(w, n); err != nil {
				return
			}
			lastSeq = n.Seq
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeSSE(w http.ResponseWriter, n events.Notice) error {
	// SSE framing: https://html.spec.whatwg.org/multipage/server-sent-events.html
	if _, err := fmt.Fprintf(w, "id: %d\n", n.Seq); err != nil {
		return err
	}
	if n.Kind != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", n.Kind); err != nil {
			return err
		}
	}
	// Data is single-line JSON.
	if _, err := fmt.Fprintf(w, "data: %s\n\n", n.Data); err != nil {
		return err
	}
	return nil
}
