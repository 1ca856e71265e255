package graph

import (
	"context"
	"errors"
	"sync"

	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

// AccountLookup resolves account summaries for listings.
type AccountLookup interface {
	FindByID(ctx context.Context, id string) (models.Account, error)
}

// InMemoryStore implements RelationshipStore over a slice kept in insertion
// order. It enforces the same uniqueness and foreign keys as the SQL schema.
type InMemoryStore struct {
	mu       sync.RWMutex
	edges    []models.Subscription
	accounts AccountLookup
}

// NewInMemoryStore returns an empty store resolving accounts through lookup.
func NewInMemoryStore(lookup AccountLookup) *InMemoryStore {
	return &InMemoryStore{accounts: lookup}
}

// Find returns the edge from subscriberID to channelID.
func (s *InMemoryStore) Find(_ context.Context, subscriberID, channelID string) (models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(subscriberID, channelID); i >= 0 {
		return s.edges[i], nil
	}
	return models.Subscription{}, repositories.ErrNotFound
}

// Create appends a new edge.
func (s *InMemoryStore) Create(ctx context.Context, sub models.Subscription) error {
	for _, id := range []string{sub.SubscriberID, sub.ChannelID} {
		if _, err := s.accounts.FindByID(ctx, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(sub.SubscriberID, sub.ChannelID) >= 0 {
		return repositories.ErrConflict
	}
	s.edges = append(s.edges, sub)
	return nil
}

// Delete removes the edge with the given id.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, edge := range s.edges {
		if edge.ID == id {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

// ListSubscribers returns one window of the subscribers of channelID.
func (s *InMemoryStore) ListSubscribers(ctx context.Context, channelID string, offset, limit int) ([]models.SubscriberEntry, error) {
	s.mu.RLock()
	var window []models.Subscription
	var mutual []bool
	for _, edge := range s.window(func(e models.Subscription) bool { return e.ChannelID == channelID }, offset, limit) {
		window = append(window, edge)
		mutual = append(mutual, s.indexOf(channelID, edge.SubscriberID) >= 0)
	}
	s.mu.RUnlock()

	entries := make([]models.SubscriberEntry, 0, len(window))
	for i, edge := range window {
		summary, err := s.summary(ctx, edge.SubscriberID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.SubscriberEntry{Subscriber: summary, IsMutuallySubscribed: mutual[i]})
	}
	return entries, nil
}

// ListSubscribedChannels returns one window of the channels subscriberID follows.
func (s *InMemoryStore) ListSubscribedChannels(ctx context.Context, subscriberID string, offset, limit int) ([]models.SubscribedChannel, error) {
	s.mu.RLock()
	var window []models.Subscription
	var counts []int64
	for _, edge := range s.window(func(e models.Subscription) bool { return e.SubscriberID == subscriberID }, offset, limit) {
		window = append(window, edge)
		counts = append(counts, s.count(func(e models.Subscription) bool { return e.ChannelID == edge.ChannelID }))
	}
	s.mu.RUnlock()

	channels := make([]models.SubscribedChannel, 0, len(window))
	for i, edge := range window {
		summary, err := s.summary(ctx, edge.ChannelID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, models.SubscribedChannel{Channel: summary, CountSubscribers: counts[i]})
	}
	return channels, nil
}

// ChannelStats counts both sides of channelID and whether viewerID follows it.
func (s *InMemoryStore) ChannelStats(_ context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ChannelStats{
		SubscriberCount:    s.count(func(e models.Subscription) bool { return e.ChannelID == channelID }),
		SubscribedToCount:  s.count(func(e models.Subscription) bool { return e.SubscriberID == channelID }),
		IsViewerSubscribed: viewerID != "" && s.indexOf(viewerID, channelID) >= 0,
	}, nil
}

// Len reports the number of stored edges.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

func (s *InMemoryStore) indexOf(subscriberID, channelID string) int {
	for i, edge := range s.edges {
		if edge.SubscriberID == subscriberID && edge.ChannelID == channelID {
			return i
		}
	}
	return -1
}

func (s *InMemoryStore) window(match func(models.Subscription) bool, offset, limit int) []models.Subscription {
	var out []models.Subscription
	skipped := 0
	for _, edge := range s.edges {
		if !match(edge) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, edge)
	}
	return out
}

func (s *InMemoryStore) count(match func(models.Subscription) bool) int64 {
	var n int64
	for _, edge := range s.edges {
		if match(edge) {
			n++
		}
	}
	return n
}

func (s *InMemoryStore) summary(ctx context.Context, id string) (models.AccountSummary, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.AccountSummary{ID: id}, nil
	}
	if err != nil {
		return models.AccountSummary{}, err
	}
	return account.Summary(), nil
}
