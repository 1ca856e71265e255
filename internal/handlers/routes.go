package handlers

import (
	"net/http"

	"github.com/channelhub/backend/internal/metrics"
	"github.com/channelhub/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Sessions      SessionService
	Authenticator middleware.Authenticator
	Accounts      AccountStore
	Graph         GraphService
	Videos        VideoService
	Media         MediaLibrary
	DB            Pinger
	RateLimiter   middleware.RateLimiter
	// TrustedProxies decides whose X-Forwarded-For the rate limiter believes.
	TrustedProxies middleware.TrustedProxies

	CookieSecure   bool
	MaxUploadBytes int64
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	auth := AuthHandler{Sessions: deps.Sessions, Media: deps.Media, CookieSecure: deps.CookieSecure, MaxUploadBytes: deps.MaxUploadBytes}
	accounts := AccountHandler{Accounts: deps.Accounts, Graph: deps.Graph, Media: deps.Media, MaxUploadBytes: deps.MaxUploadBytes}
	subscriptions := SubscriptionHandler{Graph: deps.Graph}
	videos := VideoHandler{Videos: deps.Videos, MaxUploadBytes: deps.MaxUploadBytes}

	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(deps.Authenticator)(h)
	}
	limited := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.RateLimiter, scope, deps.TrustedProxies)(h)
	}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/v1/users/register", limited("register", auth.Register))
	mux.Handle("POST /api/v1/users/login", limited("login", auth.Login))
	mux.Handle("POST /api/v1/users/refresh-token", limited("refresh", auth.Refresh))
	mux.Handle("POST /api/v1/users/logout", protected(auth.Logout))
	mux.Handle("POST /api/v1/users/change-password", protected(auth.ChangePassword))
	mux.Handle("GET /api/v1/users/current-user", protected(auth.CurrentUser))
	mux.Handle("PATCH /api/v1/users/update-account", protected(accounts.UpdateAccount))
	mux.Handle("PATCH /api/v1/users/avatar", protected(accounts.UpdateAvatar))
	mux.Handle("PATCH /api/v1/users/cover-image", protected(accounts.UpdateCoverImage))
	mux.Handle("GET /api/v1/users/c/{username}", protected(accounts.ChannelProfile))
	mux.Handle("GET /api/v1/users/history", protected(accounts.WatchHistory))

	mux.Handle("POST /api/v1/subscriptions/c/{channelID}", protected(subscriptions.Toggle))
	mux.Handle("GET /api/v1/subscriptions/c/{channelID}", protected(subscriptions.Subscribers))
	mux.Handle("GET /api/v1/subscriptions/u/{subscriberID}", protected(subscriptions.SubscribedChannels))

	mux.Handle("GET /api/v1/videos", protected(videos.List))
	mux.Handle("POST /api/v1/videos", protected(videos.Publish))
	mux.Handle("GET /api/v1/videos/{videoID}", protected(videos.Get))
	mux.Handle("PATCH /api/v1/videos/{videoID}", protected(videos.Update))
	mux.Handle("DELETE /api/v1/videos/{videoID}", protected(videos.Delete))
	mux.Handle("PATCH /api/v1/videos/toggle/publish/{videoID}", protected(videos.TogglePublish))
}
