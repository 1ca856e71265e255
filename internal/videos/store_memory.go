package videos

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

// InMemoryStore implements Store for tests and local development.
type InMemoryStore struct {
	mu     sync.RWMutex
	videos map[string]models.Video
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{videos: make(map[string]models.Video)}
}

// Create stores a new video.
func (s *InMemoryStore) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[video.ID]; ok {
		return repositories.ErrConflict
	}
	s.videos[video.ID] = video
	return nil
}

// FindByID loads a video.
func (s *InMemoryStore) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

// List filters, sorts and pages the stored videos.
func (s *InMemoryStore) List(_ context.Context, filter models.VideoFilter) ([]models.Video, int64, error) {
	s.mu.RLock()
	matched := make([]models.Video, 0, len(s.videos))
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	for _, video := range s.videos {
		if filter.OwnerID != "" && video.OwnerID != filter.OwnerID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(video.Title), query) {
			continue
		}
		if filter.OnlyLive && !video.IsPublished {
			continue
		}
		matched = append(matched, video)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := compareVideos(a, b, filter.SortBy); c != 0 {
			return (c < 0) != filter.Desc
		}
		return (a.ID < b.ID) != filter.Desc
	})

	total := int64(len(matched))
	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

// Update writes the editable fields.
func (s *InMemoryStore) Update(_ context.Context, video models.Video) error {
	return s.mutate(video.ID, func(v *models.Video) {
		v.Title = video.Title
		v.Description = video.Description
		v.Thumbnail = video.Thumbnail
		v.UpdatedAt = video.UpdatedAt
	})
}

// Delete removes a video.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

// TogglePublished flips the publication flag.
func (s *InMemoryStore) TogglePublished(_ context.Context, id string) (bool, error) {
	var published bool
	err := s.mutate(id, func(v *models.Video) {
		v.IsPublished = !v.IsPublished
		v.UpdatedAt = time.Now().UTC()
		published = v.IsPublished
	})
	return published, err
}

// IncrementViews bumps the view counter.
func (s *InMemoryStore) IncrementViews(_ context.Context, id string) error {
	return s.mutate(id, func(v *models.Video) { v.Views++ })
}

func (s *InMemoryStore) mutate(id string, fn func(*models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&video)
	s.videos[id] = video
	return nil
}

func compareVideos(a, b models.Video, field string) int {
	switch field {
	case "views":
		return cmp.Compare(a.Views, b.Views)
	case "duration":
		return cmp.Compare(a.Duration, b.Duration)
	case "title":
		return strings.Compare(a.Title, b.Title)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
