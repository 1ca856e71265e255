package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/channelhub/backend/internal/db"
	"github.com/channelhub/backend/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const accountColumns = `id, username, email, full_name, avatar, COALESCE(cover_image, ''),
        password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

// profileColumns is accountColumns without the credential columns.
const profileColumns = `id, username, email, full_name, avatar, COALESCE(cover_image, ''),
        created_at, updated_at`

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, username, email, full_name, avatar, cover_image, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
    `, account.ID, account.Username, account.Email, account.FullName, account.Avatar, account.CoverImage,
		account.PasswordHash, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if conflict := accountConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByID fetches an account by its identifier, credential columns included.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindProfileByID fetches an account without reading its password hash or
// refresh token.
func (r *PostgresAccountRepository) FindProfileByID(ctx context.Context, id string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var account models.Account
	err = conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM accounts WHERE id = $1`, id).Scan(
		&account.ID, &account.Username, &account.Email, &account.FullName, &account.Avatar,
		&account.CoverImage, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account profile: %w", err)
	}
	return account, nil
}

// FindByIdentifier fetches an account whose username or email matches.
func (r *PostgresAccountRepository) FindByIdentifier(ctx context.Context, identifier string) (models.Account, error) {
	return r.findOne(ctx, "username = $1 OR email = $1", identifier)
}

// FindByUsername fetches an account by its normalised username.
func (r *PostgresAccountRepository) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.findOne(ctx, "username = $1", username)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, where string, arg string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where+` LIMIT 1`, arg)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account: %w", err)
	}

	return account, nil
}

// SetRefreshToken overwrites the refresh token slot unconditionally.
func (r *PostgresAccountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET refresh_token = $2, updated_at = $3
        WHERE id = $1
    `, id, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SwapRefreshToken replaces the stored refresh token only while it still
// equals current. A lost race reports ErrStaleToken.
func (r *PostgresAccountRepository) SwapRefreshToken(ctx context.Context, id, current, next string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET refresh_token = $3, updated_at = $4
        WHERE id = $1 AND refresh_token = $2
    `, id, current, next, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStaleToken
	}

	return nil
}

// ClearRefreshToken empties the refresh token slot. Clearing an empty slot or
// a missing account is not an error.
func (r *PostgresAccountRepository) ClearRefreshToken(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        UPDATE accounts
        SET refresh_token = NULL, updated_at = $2
        WHERE id = $1
    `, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return nil
}

// UpdatePassword stores a new password hash.
func (r *PostgresAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateDetails changes the display name and email and returns the updated row.
func (r *PostgresAccountRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE accounts
        SET full_name = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+accountColumns, id, fullName, email, time.Now().UTC())

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		if conflict := accountConflict(err); conflict != nil {
			return models.Account{}, conflict
		}
		return models.Account{}, fmt.Errorf("update account details: %w", err)
	}

	return account, nil
}

// ReplaceAvatar stores a new avatar location and returns the previous one.
func (r *PostgresAccountRepository) ReplaceAvatar(ctx context.Context, id, location string) (string, error) {
	return r.replaceImage(ctx, "avatar", id, location)
}

// ReplaceCoverImage stores a new cover image location and returns the previous one.
func (r *PostgresAccountRepository) ReplaceCoverImage(ctx context.Context, id, location string) (string, error) {
	return r.replaceImage(ctx, "cover_image", id, location)
}

func (r *PostgresAccountRepository) replaceImage(ctx context.Context, column, id, location string) (string, error) {
	if column != "avatar" && column != "cover_image" {
		return "", fmt.Errorf("replace image: unsupported column %q", column)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE accounts AS a
        SET `+column+` = $2, updated_at = $3
        FROM (SELECT id, COALESCE(`+column+`, '') AS previous FROM accounts WHERE id = $1 FOR UPDATE) AS old
        WHERE a.id = old.id
        RETURNING old.previous
    `, id, location, time.Now().UTC())

	var previous string
	if err := row.Scan(&previous); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("replace %s: %w", column, err)
	}

	return previous, nil
}

// RecordWatch appends a video to the account's watch history, moving it to
// the most recent position when already present.
func (r *PostgresAccountRepository) RecordWatch(ctx context.Context, accountID, videoID string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (account_id, video_id, watched_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (account_id, video_id)
        DO UPDATE SET watched_at = EXCLUDED.watched_at
    `, accountID, videoID, at.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("record watch: %w", err)
	}

	return nil
}

// WatchHistory returns watched videos, most recent first, joined with their owners.
func (r *PostgresAccountRepository) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_file, v.thumbnail, v.duration,
               v.is_published, v.views, v.created_at, v.updated_at,
               o.id, o.username, o.full_name, o.avatar,
               h.watched_at
        FROM watch_history h
        JOIN videos v ON v.id = h.video_id
        JOIN accounts o ON o.id = v.owner_id
        WHERE h.account_id = $1
        ORDER BY h.watched_at DESC
    `, accountID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := []models.WatchHistoryEntry{}
	for rows.Next() {
		var entry models.WatchHistoryEntry
		v := &entry.Video
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail, &v.Duration,
			&v.IsPublished, &v.Views, &v.CreatedAt, &v.UpdatedAt,
			&entry.Owner.ID, &entry.Owner.Username, &entry.Owner.FullName, &entry.Owner.Avatar,
			&entry.WatchedAt); err != nil {
			return nil, fmt.Errorf("scan watch history: %w", err)
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return history, nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	err := row.Scan(&account.ID, &account.Username, &account.Email, &account.FullName, &account.Avatar,
		&account.CoverImage, &account.PasswordHash, &account.RefreshToken, &account.CreatedAt, &account.UpdatedAt)
	return account, err
}

// accountConflict maps a unique violation onto the matching sentinel.
func accountConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	detail := pgErr.ConstraintName + " " + pgErr.Message + " " + pgErr.Detail
	switch {
	case strings.Contains(detail, "username"):
		return ErrUsernameTaken
	case strings.Contains(detail, "email"):
		return ErrEmailTaken
	default:
		return ErrConflict
	}
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
