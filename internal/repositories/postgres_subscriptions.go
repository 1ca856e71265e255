package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/channelhub/backend/internal/db"
	"github.com/channelhub/backend/internal/models"
)

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for
// subscription edges and the queries derived from them.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Find loads the edge from subscriberID to channelID.
func (r *PostgresSubscriptionRepository) Find(ctx context.Context, subscriberID, channelID string) (models.Subscription, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, subscriber_id, channel_id, created_at
        FROM subscriptions
        WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID)

	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.SubscriberID, &sub.ChannelID, &sub.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Subscription{}, ErrNotFound
		}
		return models.Subscription{}, fmt.Errorf("select subscription: %w", err)
	}

	return sub, nil
}

// Create inserts a new edge. The unique (subscriber, channel) index turns a
// duplicate into ErrConflict.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub models.Subscription) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrConflict
			case pgForeignKeyViolation:
				return ErrNotFound
			case pgCheckViolation:
				return fmt.Errorf("insert subscription: self subscription rejected: %w", err)
			}
		}
		return fmt.Errorf("insert subscription: %w", err)
	}

	return nil
}

// Delete removes an edge by id.
func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListSubscribers returns one page of a channel's subscribers in edge
// insertion order. The mutual flag is a correlated existence check on the
// reverse edge, evaluated once per returned row.
func (r *PostgresSubscriptionRepository) ListSubscribers(ctx context.Context, channelID string, offset, limit int) ([]models.SubscriberEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT a.id, a.username, a.full_name, a.avatar,
               EXISTS (
                   SELECT 1 FROM subscriptions r
                   WHERE r.subscriber_id = s.channel_id AND r.channel_id = s.subscriber_id
               ) AS is_mutual
        FROM subscriptions s
        JOIN accounts a ON a.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at, s.id
        OFFSET $2 LIMIT $3
    `, channelID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	entries := []models.SubscriberEntry{}
	for rows.Next() {
		var entry models.SubscriberEntry
		s := &entry.Subscriber
		if err := rows.Scan(&s.ID, &s.Username, &s.FullName, &s.Avatar, &entry.IsMutuallySubscribed); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	return entries, nil
}

// ListSubscribedChannels returns one page of the channels subscriberID
// follows, each with its total subscriber count.
func (r *PostgresSubscriptionRepository) ListSubscribedChannels(ctx context.Context, subscriberID string, offset, limit int) ([]models.SubscribedChannel, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT a.id, a.username, a.full_name, a.avatar,
               (SELECT count(*) FROM subscriptions c WHERE c.channel_id = s.channel_id) AS subscriber_count
        FROM subscriptions s
        JOIN accounts a ON a.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at, s.id
        OFFSET $2 LIMIT $3
    `, subscriberID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("query subscribed channels: %w", err)
	}
	defer rows.Close()

	channels := []models.SubscribedChannel{}
	for rows.Next() {
		var entry models.SubscribedChannel
		c := &entry.Channel
		if err := rows.Scan(&c.ID, &c.Username, &c.FullName, &c.Avatar, &entry.CountSubscribers); err != nil {
			return nil, fmt.Errorf("scan subscribed channel: %w", err)
		}
		channels = append(channels, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribed channels: %w", err)
	}

	return channels, nil
}

// ChannelStats computes the relationship aggregates for a channel profile.
// An empty viewerID never counts as subscribed.
func (r *PostgresSubscriptionRepository) ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var viewer *string
	if viewerID != "" {
		viewer = &viewerID
	}

	row := conn.QueryRow(ctx, `
        SELECT
            (SELECT count(*) FROM subscriptions WHERE channel_id = $1),
            (SELECT count(*) FROM subscriptions WHERE subscriber_id = $1),
            EXISTS (SELECT 1 FROM subscriptions WHERE channel_id = $1 AND subscriber_id = $2::UUID)
    `, channelID, viewer)

	var stats models.ChannelStats
	if err := row.Scan(&stats.SubscriberCount, &stats.SubscribedToCount, &stats.IsViewerSubscribed); err != nil {
		return models.ChannelStats{}, fmt.Errorf("select channel stats: %w", err)
	}

	return stats, nil
}

var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
