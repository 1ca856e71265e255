// Package videos implements the video catalog: publishing, listing, owner-only
// edits and watch tracking.
package videos

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/media"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

const (
	defaultLimit = 10
	maxLimit     = 100

	videoFolder     = "videos"
	thumbnailFolder = "thumbnails"
)

// Store persists videos.
type Store interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter models.VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
	TogglePublished(ctx context.Context, id string) (bool, error)
	IncrementViews(ctx context.Context, id string) error
}

// Library stores uploaded media and retires replaced assets.
type Library interface {
	SaveVideo(ctx context.Context, folder string, upload media.Upload) (media.Asset, error)
	SaveImage(ctx context.Context, folder string, upload media.Upload) (media.Asset, error)
	Discard(ctx context.Context, location string)
}

// WatchRecorder appends to an account's watch history.
type WatchRecorder interface {
	RecordWatch(ctx context.Context, accountID, videoID string, at time.Time) error
}

// ListQuery selects a page of the catalog as seen by ViewerID.
type ListQuery struct {
	Page     int
	Limit    int
	Query    string
	SortBy   string
	SortType string
	OwnerID  string
	ViewerID string
}

// Listing is one page of videos with pagination metadata.
type Listing struct {
	Docs        []models.Video `json:"docs"`
	TotalDocs   int64          `json:"totalDocs"`
	Page        int            `json:"page"`
	Limit       int            `json:"limit"`
	TotalPages  int            `json:"totalPages"`
	HasNextPage bool           `json:"hasNextPage"`
	HasPrevPage bool           `json:"hasPrevPage"`
}

// PublishInput carries a new video and its thumbnail.
type PublishInput struct {
	Title       string
	Description string
	Video       *media.Upload
	Thumbnail   *media.Upload
}

// UpdateInput carries editable fields. A nil Thumbnail keeps the current one.
type UpdateInput struct {
	Title       string
	Description string
	Thumbnail   *media.Upload
}

// Service implements the catalog operations.
type Service struct {
	store   Store
	library Library
	watches WatchRecorder
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, library Library, watches WatchRecorder) *Service {
	if store == nil || library == nil || watches == nil {
		panic("videos: service dependencies must not be nil")
	}
	return &Service{
		store:   store,
		library: library,
		watches: watches,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of videos. Unpublished videos are only included when
// the viewer lists their own channel.
func (s *Service) List(ctx context.Context, q ListQuery) (Listing, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page-1 > math.MaxInt/limit {
		return Listing{}, apperr.Validation("page is out of range")
	}

	sortType := strings.ToLower(strings.TrimSpace(q.SortType))
	if sortType != "" && sortType != "asc" && sortType != "desc" {
		return Listing{}, apperr.Validation("sortType must be asc or desc")
	}
	if q.SortBy != "" && !SortableField(q.SortBy) {
		return Listing{}, apperr.Validation("unsupported sortBy field")
	}

	filter := models.VideoFilter{
		OwnerID:  q.OwnerID,
		Query:    strings.TrimSpace(q.Query),
		SortBy:   q.SortBy,
		Desc:     sortType != "asc",
		Offset:   (page - 1) * limit,
		Limit:    limit,
		OnlyLive: q.OwnerID == "" || q.OwnerID != q.ViewerID,
	}

	docs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return Listing{}, apperr.Internal("failed to list videos", err)
	}
	if docs == nil {
		docs = []models.Video{}
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Listing{
		Docs:        docs,
		TotalDocs:   total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

// Publish stores the uploads and creates a published video owned by ownerID.
// Assets already stored are discarded when a later step fails.
func (s *Service) Publish(ctx context.Context, ownerID string, in PublishInput) (video models.Video, err error) {
	ctx, span := logging.StartSpan(ctx, "videos.publish")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	title, description := strings.TrimSpace(in.Title), strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return models.Video{}, apperr.Validation("title and description are required")
	}
	if in.Video == nil {
		return models.Video{}, apperr.Validation("video file is required")
	}
	if in.Thumbnail == nil {
		return models.Video{}, apperr.Validation("thumbnail is required")
	}

	videoAsset, err := s.library.SaveVideo(ctx, videoFolder, *in.Video)
	if err != nil {
		return models.Video{}, uploadError("video", err)
	}

	thumbAsset, err := s.library.SaveImage(ctx, thumbnailFolder, *in.Thumbnail)
	if err != nil {
		s.library.Discard(ctx, videoAsset.Location)
		return models.Video{}, uploadError("thumbnail", err)
	}

	now := s.now()
	video = models.Video{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		VideoFile:   videoAsset.Location,
		Thumbnail:   thumbAsset.Location,
		Duration:    videoAsset.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, video); err != nil {
		s.library.Discard(ctx, videoAsset.Location)
		s.library.Discard(ctx, thumbAsset.Location)
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, apperr.NotFound("user does not exist")
		}
		return models.Video{}, apperr.Internal("failed to create video", err)
	}

	return video, nil
}

// Get returns a video. A viewer other than the owner cannot see unpublished
// videos; an authenticated viewer's visit bumps the view counter and is
// recorded in their watch history.
func (s *Service) Get(ctx context.Context, viewerID, videoID string) (models.Video, error) {
	video, err := s.find(ctx, videoID)
	if err != nil {
		return models.Video{}, err
	}
	if !video.IsPublished && video.OwnerID != viewerID {
		return models.Video{}, apperr.NotFound("video does not exist")
	}
	if viewerID == "" {
		return video, nil
	}

	logger := logging.FromContext(ctx)
	if err := s.store.IncrementViews(ctx, video.ID); err != nil {
		logger.Warn("increment video views", "videoId", video.ID, "error", err)
	} else {
		video.Views++
	}
	if err := s.watches.RecordWatch(ctx, viewerID, video.ID, s.now()); err != nil {
		logger.Warn("record watch history", "videoId", video.ID, "error", err)
	}

	return video, nil
}

// Update edits the title, description and optionally the thumbnail of a video
// owned by actorID.
func (s *Service) Update(ctx context.Context, actorID, videoID string, in UpdateInput) (models.Video, error) {
	title, description := strings.TrimSpace(in.Title), strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return models.Video{}, apperr.Validation("title and description are required")
	}

	video, err := s.owned(ctx, actorID, videoID)
	if err != nil {
		return models.Video{}, err
	}

	previousThumbnail := ""
	if in.Thumbnail != nil {
		asset, err := s.library.SaveImage(ctx, thumbnailFolder, *in.Thumbnail)
		if err != nil {
			return models.Video{}, uploadError("thumbnail", err)
		}
		previousThumbnail, video.Thumbnail = video.Thumbnail, asset.Location
	}

	video.Title = title
	video.Description = description
	video.UpdatedAt = s.now()

	if err := s.store.Update(ctx, video); err != nil {
		if in.Thumbnail != nil {
			s.library.Discard(ctx, video.Thumbnail)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, apperr.NotFound("video does not exist")
		}
		return models.Video{}, apperr.Internal("failed to update video", err)
	}

	s.library.Discard(ctx, previousThumbnail)
	return video, nil
}

// Delete removes a video owned by actorID together with its media.
func (s *Service) Delete(ctx context.Context, actorID, videoID string) error {
	video, err := s.owned(ctx, actorID, videoID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, video.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("video does not exist")
		}
		return apperr.Internal("failed to delete video", err)
	}

	s.library.Discard(ctx, video.VideoFile)
	s.library.Discard(ctx, video.Thumbnail)
	return nil
}

// TogglePublish flips the publication flag of a video owned by actorID.
func (s *Service) TogglePublish(ctx context.Context, actorID, videoID string) (models.Video, error) {
	video, err := s.owned(ctx, actorID, videoID)
	if err != nil {
		return models.Video{}, err
	}

	published, err := s.store.TogglePublished(ctx, video.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, apperr.NotFound("video does not exist")
		}
		return models.Video{}, apperr.Internal("failed to toggle publication", err)
	}

	video.IsPublished = published
	return video, nil
}

// SortableField reports whether field may be used as sortBy.
func SortableField(field string) bool {
	switch field {
	case "createdAt", "views", "duration", "title":
		return true
	}
	return false
}

func (s *Service) find(ctx context.Context, videoID string) (models.Video, error) {
	video, err := s.store.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, apperr.NotFound("video does not exist")
		}
		return models.Video{}, apperr.Internal("failed to load video", err)
	}
	return video, nil
}

func (s *Service) owned(ctx context.Context, actorID, videoID string) (models.Video, error) {
	video, err := s.find(ctx, videoID)
	if err != nil {
		return models.Video{}, err
	}
	if video.OwnerID != actorID {
		return models.Video{}, apperr.Forbidden("only the owner can modify this video")
	}
	return video, nil
}

func uploadError(what string, err error) error {
	switch {
	case errors.Is(err, media.ErrUnsupportedMedia):
		return apperr.Wrap(apperr.KindValidation, "unsupported "+what+" type", err)
	default:
		return apperr.Internal("failed to upload "+what, err)
	}
}
