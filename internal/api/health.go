package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mattjoyce/issuegate/internal/apierror"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	apierror.WriteJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, apierror.New(apierror.NotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	e := apierror.New(apierror.BadRequest, fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path))
	apierror.WriteJSON(w, http.StatusMethodNotAllowed, e.Envelope())
}
