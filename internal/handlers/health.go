package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(pingCtx); err != nil {
			response.Error(ctx, w, apperr.Internal("database unavailable", err))
			return
		}
	}

	response.Write(ctx, w, http.StatusOK, map[string]string{"status": "ok"}, "OK")
}
