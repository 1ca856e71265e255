// Package response renders the JSON envelope shared by every API endpoint.
package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/logging"
)

// Envelope wraps successful payloads.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the body of every failed request.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Data       any      `json:"data"`
	Success    bool     `json:"success"`
}

// Write renders data inside the success envelope.
func Write(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	writeJSON(ctx, w, status, Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

// Error renders err inside the error envelope. Errors that are not classified
// by apperr become a generic 500 and their cause is only logged.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	if appErr == nil {
		appErr = apperr.Internal("internal server error", nil)
	}
	status := appErr.Status()

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "message", appErr.Message, "error", err)
	default:
		logger.Warn("request returned client error", "status", status, "kind", appErr.Kind.String(), "message", appErr.Message)
	}

	writeJSON(ctx, w, status, ErrorEnvelope{
		StatusCode: status,
		Message:    appErr.Message,
		Errors:     []string{},
		Success:    false,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
