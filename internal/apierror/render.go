package apierror

import (
	"encoding/json"
	"net/http"
)

// WriteJSON sends data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Write sends e as the error envelope with its kind's status.
func Write(w http.ResponseWriter, e *Error) {
	WriteJSON(w, e.Status(), e.Envelope())
}
