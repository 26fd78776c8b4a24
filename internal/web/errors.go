package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical details and the request id, then
// returned to the client as a JSON body carrying the mapped user message,
// suggested action and support code from core.MapError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tabx/internal/core"
	"github.com/JonMunkholm/tabx/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message. A zero status is
// derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status of an error returned by the engines or the
// job store.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrTaskSuperseded):
		return http.StatusGone
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}

	// Problems with the client's input map to format, import and request codes.
	switch code := core.MapError(err).Code; {
	case strings.HasPrefix(code, "FMT"), strings.HasPrefix(code, "IMP"),
		code == "FILE002", code == "FILE004":
		return http.StatusBadRequest
	case code == "FILE001":
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
