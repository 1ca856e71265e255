package repositories

import (
	"context"

	"github.com/channelhub/backend/internal/models"
)

// SubscriptionRepository defines data access for subscription edges.
type SubscriptionRepository interface {
	Find(ctx context.Context, subscriberID, channelID string) (models.Subscription, error)
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, id string) error
	ListSubscribers(ctx context.Context, channelID string, offset, limit int) ([]models.SubscriberEntry, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string, offset, limit int) ([]models.SubscribedChannel, error)
	ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error)
}
