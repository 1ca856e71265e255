package handlers

import (
	"context"
	"time"

	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/graph"
	"github.com/channelhub/backend/internal/media"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/videos"
)

// SessionService runs the credential and session lifecycle.
type SessionService interface {
	Register(ctx context.Context, reg auth.Registration) (models.Account, error)
	Login(ctx context.Context, identifier, secret string) (auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Logout(ctx context.Context, accountID string) error
	ChangePassword(ctx context.Context, accountID, oldSecret, newSecret string) error
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AccountStore captures the account operations used outside the session lifecycle.
type AccountStore interface {
	UpdateDetails(ctx context.Context, id, fullName, email string) (models.Account, error)
	ReplaceAvatar(ctx context.Context, id, location string) (string, error)
	ReplaceCoverImage(ctx context.Context, id, location string) (string, error)
	WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryEntry, error)
}

// GraphService answers subscription graph queries.
type GraphService interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (models.ToggleResult, error)
	ListSubscribers(ctx context.Context, channelID string, page graph.Page) ([]models.SubscriberEntry, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string, page graph.Page) ([]models.SubscribedChannel, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}

// VideoService manages the video catalog.
type VideoService interface {
	List(ctx context.Context, q videos.ListQuery) (videos.Listing, error)
	Publish(ctx context.Context, ownerID string, in videos.PublishInput) (models.Video, error)
	Get(ctx context.Context, viewerID, videoID string) (models.Video, error)
	Update(ctx context.Context, actorID, videoID string, in videos.UpdateInput) (models.Video, error)
	Delete(ctx context.Context, actorID, videoID string) error
	TogglePublish(ctx context.Context, actorID, videoID string) (models.Video, error)
}

// MediaLibrary stores uploads and retires replaced assets.
type MediaLibrary interface {
	SaveImage(ctx context.Context, folder string, upload media.Upload) (media.Asset, error)
	Discard(ctx context.Context, location string)
}
