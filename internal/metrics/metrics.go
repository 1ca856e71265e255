package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelhub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "channelhub_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	// AuthEventsTotal counts session lifecycle outcomes. Refresh replays are
	// recorded with outcome "reuse".
	AuthEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelhub_auth_events_total",
		Help: "Session lifecycle events by outcome",
	}, []string{"event", "outcome"})
	SubscriptionTogglesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelhub_subscription_toggles_total",
		Help: "Subscription toggles by resulting state",
	}, []string{"result"})
	AssetCleanupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelhub_asset_cleanups_total",
		Help: "Superseded media asset deletions by outcome",
	}, []string{"outcome"})
	// MigrationsAppliedTotal counts schema migrations and seed files executed
	// by the migrate and seed commands.
	MigrationsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channelhub_migrations_applied_total",
		Help: "SQL files applied by kind",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, AuthEventsTotal, SubscriptionTogglesTotal, AssetCleanupsTotal, MigrationsAppliedTotal)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthEvent records one session lifecycle outcome.
func AuthEvent(event, outcome string) {
	AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}
