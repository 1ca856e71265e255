package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/config"
	"github.com/channelhub/backend/internal/db"
	"github.com/channelhub/backend/internal/graph"
	"github.com/channelhub/backend/internal/handlers"
	"github.com/channelhub/backend/internal/media"
	"github.com/channelhub/backend/internal/middleware"
	"github.com/channelhub/backend/internal/repositories"
	"github.com/channelhub/backend/internal/storage"
	"github.com/channelhub/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains pending media deletions.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure tokens: %w", err)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	var (
		objects media.Store
		deleter media.Deleter
	)
	if strings.TrimSpace(cfg.ObjectStore.Bucket) == "" {
		logger.Warn("object storage bucket not configured, media uploads are disabled")
	} else {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
		}
		objects, deleter = s3, s3
	}

	janitor := media.NewJanitor(deleter, media.JanitorConfig{
		QueueSize: cfg.Media.JanitorQueue,
		Workers:   cfg.Media.JanitorWorkers,
	}, logger)
	library := media.NewLibrary(objects, media.NewFFProbe(cfg.Media.FFProbePath, cfg.Media.ProbeTimeout), janitor)

	accounts := repositories.NewPostgresAccountRepository(pool)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)
	catalog := repositories.NewPostgresVideoRepository(pool)

	deps := handlers.Dependencies{
		Sessions:       auth.NewManager(accounts, issuer),
		Authenticator:  auth.NewAuthenticator(issuer, accounts),
		Accounts:       accounts,
		Graph:          graph.NewEngine(subscriptions, accounts),
		Videos:         videos.NewService(catalog, library, accounts),
		Media:          library,
		DB:             pool,
		RateLimiter:    middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 0),
		TrustedProxies: proxies,
		CookieSecure:   cfg.CookieSecure,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	return deps, janitor.Shutdown, nil
}
