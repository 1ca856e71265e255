package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/channelhub/backend/internal/metrics"
)

// Metrics records request counts and latencies labelled by the matched
// ServeMux pattern. It must wrap the mux directly so the pattern set during
// routing is visible after the call returns.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(wrapped.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
