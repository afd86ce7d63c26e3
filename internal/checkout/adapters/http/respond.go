package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// Error codes used in the structured error envelope.
const (
	codeBadRequest      = "BAD_REQUEST"
	codeNotFound        = "NOT_FOUND"
	codeConflict        = "CONFLICT"
	codeIntegrityFailed = "INTEGRITY_FAILED"
	codeGatewayError    = "GATEWAY_ERROR"
	codeInternal        = "INTERNAL"
)

type successEnvelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{
		Success:   false,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
