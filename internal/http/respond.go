package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/skovert/feedwall/internal/apperr"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends the {message, status, data} error contract.
func writeError(w http.ResponseWriter, status int, msg string, data ...string) {
	writeJSON(w, status, apperr.Error{Message: msg, Status: status, Data: data})
}

// writeAppError maps a service error onto the error contract.
func writeAppError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	writeJSON(w, appErr.Status, appErr)
}
