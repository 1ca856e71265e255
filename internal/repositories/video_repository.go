package repositories

import (
	"context"

	"github.com/channelhub/backend/internal/models"
)

// VideoRepository exposes data access for published videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
	TogglePublished(ctx context.Context, id string) (bool, error)
	IncrementViews(ctx context.Context, id string) error
}
