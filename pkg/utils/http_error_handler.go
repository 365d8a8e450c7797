package utils

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the envelope every failed request shares. Handlers choose
// the message; status is always "error" so clients can branch on one field.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteError writes the JSON error envelope with the given HTTP status. The
// message is the user-facing text; internals go to the logger at the call
// site, never over the wire.
func WriteError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(errorResponse{
		Status:  "error",
		Message: message,
	}); err != nil {
		Logger.Errorf("failed to encode error response: %v", err)
	}
}
