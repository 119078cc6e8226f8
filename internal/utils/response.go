package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"smartqueue/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError maps err onto its status code. The client shows Message, so it
// carries the error text; internal errors are not echoed.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	WriteJSON(w, status, ErrorResponse(message, http.StatusText(status)))
}

// WriteMessage writes a success envelope without data.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, SuccessResponse(message, nil))
}
