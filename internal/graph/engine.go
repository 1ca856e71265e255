// Package graph answers questions about the subscription graph: toggling an
// edge, listing either side of a channel, and aggregating a channel profile.
package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/metrics"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

const maxToggleAttempts = 3

// RelationshipStore persists subscription edges.
type RelationshipStore interface {
	Find(ctx context.Context, subscriberID, channelID string) (models.Subscription, error)
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, id string) error
	ListSubscribers(ctx context.Context, channelID string, offset, limit int) ([]models.SubscriberEntry, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string, offset, limit int) ([]models.SubscribedChannel, error)
	ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error)
}

// Directory resolves accounts for existence checks and profile lookups.
type Directory interface {
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByUsername(ctx context.Context, username string) (models.Account, error)
}

// Engine implements the graph operations on top of a RelationshipStore.
type Engine struct {
	store    RelationshipStore
	accounts Directory
	now      func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(store RelationshipStore, accounts Directory) *Engine {
	if store == nil || accounts == nil {
		panic("graph: engine dependencies must not be nil")
	}
	return &Engine{
		store:    store,
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Toggle flips the subscription edge from subscriberID to channelID. Races
// with a concurrent toggle of the same pair surface as a conflict or a
// missing row and are retried from the top.
func (e *Engine) Toggle(ctx context.Context, subscriberID, channelID string) (models.ToggleResult, error) {
	ctx, span := logging.StartSpan(ctx, "graph.toggle")
	defer span.End()
	logger := logging.FromContext(ctx)

	if subscriberID == channelID {
		return models.ToggleResult{}, apperr.Validation("cannot subscribe to your own channel")
	}
	if err := e.requireAccount(ctx, channelID, "channel does not exist"); err != nil {
		return models.ToggleResult{}, err
	}

	for attempt := 1; attempt <= maxToggleAttempts; attempt++ {
		existing, err := e.store.Find(ctx, subscriberID, channelID)
		switch {
		case err == nil:
			err = e.store.Delete(ctx, existing.ID)
			if err == nil {
				metrics.SubscriptionTogglesTotal.WithLabelValues("unsubscribed").Inc()
				return models.ToggleResult{Subscribed: false}, nil
			}
			if !errors.Is(err, repositories.ErrNotFound) {
				return models.ToggleResult{}, apperr.Internal("failed to remove subscription", err)
			}
		case errors.Is(err, repositories.ErrNotFound):
			sub := models.Subscription{
				ID:           uuid.NewString(),
				SubscriberID: subscriberID,
				ChannelID:    channelID,
				CreatedAt:    e.now(),
			}
			err = e.store.Create(ctx, sub)
			if err == nil {
				metrics.SubscriptionTogglesTotal.WithLabelValues("subscribed").Inc()
				return models.ToggleResult{Subscribed: true, Subscription: &sub}, nil
			}
			if errors.Is(err, repositories.ErrNotFound) {
				return models.ToggleResult{}, apperr.NotFound("channel does not exist")
			}
			if !errors.Is(err, repositories.ErrConflict) {
				return models.ToggleResult{}, apperr.Internal("failed to create subscription", err)
			}
		default:
			return models.ToggleResult{}, apperr.Internal("failed to load subscription", err)
		}
		logger.Warn("subscription toggle raced", slog.Int("attempt", attempt), slog.String("channelId", channelID))
	}

	metrics.SubscriptionTogglesTotal.WithLabelValues("failed").Inc()
	return models.ToggleResult{}, apperr.Internal("subscription toggle did not settle", nil)
}

// ListSubscribers returns one page of the accounts subscribed to channelID,
// each flagged when the channel subscribes back.
func (e *Engine) ListSubscribers(ctx context.Context, channelID string, page Page) ([]models.SubscriberEntry, error) {
	ctx, span := logging.StartSpan(ctx, "graph.list_subscribers")
	defer span.End()

	if err := e.requireAccount(ctx, channelID, "channel does not exist"); err != nil {
		return nil, err
	}

	page = page.Normalize()
	entries, err := e.store.ListSubscribers(ctx, channelID, page.Offset(), page.Limit)
	if err != nil {
		return nil, apperr.Internal("failed to list subscribers", err)
	}
	if entries == nil {
		entries = []models.SubscriberEntry{}
	}
	return entries, nil
}

// ListSubscribedChannels returns one page of the channels subscriberID
// follows, each with its total subscriber count.
func (e *Engine) ListSubscribedChannels(ctx context.Context, subscriberID string, page Page) ([]models.SubscribedChannel, error) {
	ctx, span := logging.StartSpan(ctx, "graph.list_subscribed_channels")
	defer span.End()

	if err := e.requireAccount(ctx, subscriberID, "subscriber does not exist"); err != nil {
		return nil, err
	}

	page = page.Normalize()
	channels, err := e.store.ListSubscribedChannels(ctx, subscriberID, page.Offset(), page.Limit)
	if err != nil {
		return nil, apperr.Internal("failed to list subscribed channels", err)
	}
	if channels == nil {
		channels = []models.SubscribedChannel{}
	}
	return channels, nil
}

// ChannelProfile looks up a channel by username and aggregates its
// relationship counts as seen by viewerID. An empty viewerID is never
// subscribed.
func (e *Engine) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "graph.channel_profile")
	defer span.End()

	username = models.NormalizeHandle(username)
	if username == "" {
		return models.ChannelProfile{}, apperr.Validation("username is missing")
	}

	channel, err := e.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, apperr.NotFound("channel does not exist")
		}
		return models.ChannelProfile{}, apperr.Internal("failed to load channel", err)
	}

	stats, err := e.store.ChannelStats(ctx, channel.ID, viewerID)
	if err != nil {
		return models.ChannelProfile{}, apperr.Internal("failed to aggregate channel", err)
	}

	return models.ChannelProfile{
		ID:                 channel.ID,
		Username:           channel.Username,
		Email:              channel.Email,
		FullName:           channel.FullName,
		Avatar:             channel.Avatar,
		CoverImage:         channel.CoverImage,
		CreatedAt:          channel.CreatedAt,
		SubscriberCount:    stats.SubscriberCount,
		SubscribedToCount:  stats.SubscribedToCount,
		IsViewerSubscribed: stats.IsViewerSubscribed,
	}, nil
}

func (e *Engine) requireAccount(ctx context.Context, id, missing string) error {
	if _, err := e.accounts.FindByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound(missing)
		}
		return apperr.Internal("failed to load account", err)
	}
	return nil
}
