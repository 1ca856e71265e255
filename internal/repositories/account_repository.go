package repositories

import (
	"context"
	"time"

	"github.com/channelhub/backend/internal/models"
)

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindProfileByID(ctx context.Context, id string) (models.Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (models.Account, error)
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateDetails(ctx context.Context, id, fullName, email string) (models.Account, error)
	ReplaceAvatar(ctx context.Context, id, location string) (string, error)
	ReplaceCoverImage(ctx context.Context, id, location string) (string, error)
	RecordWatch(ctx context.Context, accountID, videoID string, at time.Time) error
	WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryEntry, error)
}
