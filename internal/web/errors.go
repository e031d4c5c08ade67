package web

// errors.go maps failures to JSON error responses. The technical error is
// logged with the request id; the client gets a stable code plus the message.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/gtingest/internal/logging"
)

var (
	// ErrBatchRunning is returned when a batch is requested while another runs.
	ErrBatchRunning = errors.New("a batch is already running")

	// ErrBadRequest marks an undecodable request body.
	ErrBadRequest = errors.New("invalid request body")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorCode returns the machine-readable code for err.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrBatchRunning):
		return "batch_running"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal"
	}
}

// respondError logs err and writes it as JSON with the given status.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	code := errorCode(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err,
	)

	writeJSON(w, r, status, ErrorResponse{Error: err.Error(), Code: code})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
