package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/metrics"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

// AccountStore is the credential store the session manager works against.
// The refresh token column is a single slot per account.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (models.Account, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Registration carries the fields of a new account.
type Registration struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

// Normalize trims the text fields and lowercases username and email.
func (r *Registration) Normalize() {
	r.Username = models.NormalizeHandle(r.Username)
	r.Email = models.NormalizeHandle(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

// ValidateCredentials checks every field except the media references, so
// callers can reject a request before uploading anything.
func (r Registration) ValidateCredentials() error {
	if r.Username == "" || r.Email == "" || r.FullName == "" || r.Password == "" {
		return apperr.Validation("all fields are required")
	}
	if strings.ContainsAny(r.Username, " \t\n@") {
		return apperr.Validation("username must not contain spaces or '@'")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperr.Validation("invalid email address")
	}
	if len(r.Password) < MinPasswordLength {
		return apperr.Validation("password must be at least 8 characters")
	}
	return nil
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Account models.Account
	Tokens  models.SessionTokens
}

// Manager orchestrates registration, login, refresh-token rotation, logout and
// password changes. All session state lives in the account store.
type Manager struct {
	accounts AccountStore
	tokens   *TokenIssuer
	now      func() time.Time
}

// NewManager constructs a Manager backed by the provided store and issuer.
func NewManager(accounts AccountStore, tokens *TokenIssuer) *Manager {
	if accounts == nil {
		panic("auth: account store must not be nil")
	}
	if tokens == nil {
		panic("auth: token issuer must not be nil")
	}
	return &Manager{
		accounts: accounts,
		tokens:   tokens,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new account. Uniqueness of username and email is left to
// the store, which reports violations as conflicts.
func (m *Manager) Register(ctx context.Context, reg Registration) (models.Account, error) {
	reg.Normalize()
	if err := reg.ValidateCredentials(); err != nil {
		return models.Account{}, err
	}
	if strings.TrimSpace(reg.Avatar) == "" {
		return models.Account{}, apperr.Validation("avatar file is required")
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return models.Account{}, apperr.Internal("failed to secure password", err)
	}

	now := m.now()
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     reg.Username,
		Email:        reg.Email,
		FullName:     reg.FullName,
		Avatar:       reg.Avatar,
		CoverImage:   reg.CoverImage,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUsernameTaken):
			return models.Account{}, apperr.Conflict("username already taken")
		case errors.Is(err, repositories.ErrEmailTaken):
			return models.Account{}, apperr.Conflict("email already taken")
		case errors.Is(err, repositories.ErrConflict):
			return models.Account{}, apperr.Conflict("account already exists")
		}
		return models.Account{}, apperr.Internal("failed to create account", err)
	}

	return account.Sanitized(), nil
}

// Login authenticates by username or email and opens the account's single
// session slot, replacing whatever refresh token was stored before.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (LoginResult, error) {
	ctx, span := logging.StartSpan(ctx, "auth.login")
	defer span.End()
	logger := logging.FromContext(ctx)

	identifier = models.NormalizeHandle(identifier)
	if identifier == "" || secret == "" {
		return LoginResult{}, apperr.Validation("username or email and password are required")
	}

	account, err := m.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.AuthEvent("login", "unknown_account")
			return LoginResult{}, apperr.NotFound("user does not exist")
		}
		return LoginResult{}, apperr.Internal("failed to load account", err)
	}

	if !VerifyPassword(account.PasswordHash, secret) {
		logger.Warn("login password mismatch", "accountId", account.ID)
		metrics.AuthEvent("login", "bad_password")
		return LoginResult{}, apperr.Unauthorized("invalid credentials")
	}

	tokens, err := m.tokens.Issue(account)
	if err != nil {
		return LoginResult{}, apperr.Internal("failed to issue tokens", err)
	}

	if err := m.accounts.SetRefreshToken(ctx, account.ID, tokens.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return LoginResult{}, apperr.NotFound("user does not exist")
		}
		return LoginResult{}, apperr.Internal("failed to store session", err)
	}

	metrics.AuthEvent("login", "success")
	return LoginResult{Account: account.Sanitized(), Tokens: tokens}, nil
}

// Refresh exchanges the current refresh token for a new pair. The presented
// token must equal the stored one; the replacement is written with a
// compare-and-swap so concurrent refreshes of one token cannot both win.
func (m *Manager) Refresh(ctx context.Context, presented string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "auth.refresh")
	defer span.End()
	logger := logging.FromContext(ctx)

	presented = strings.TrimSpace(presented)
	if presented == "" {
		metrics.AuthEvent("refresh", "missing")
		return models.SessionTokens{}, apperr.Unauthorized("unauthorized request")
	}

	claims, err := m.tokens.VerifyRefresh(presented)
	if err != nil {
		logger.Warn("refresh token verification failed", "error", err)
		metrics.AuthEvent("refresh", "invalid")
		return models.SessionTokens{}, apperr.Wrap(apperr.KindUnauthorized, "invalid refresh token", err)
	}

	account, err := m.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.AuthEvent("refresh", "invalid")
			return models.SessionTokens{}, apperr.Unauthorized("invalid refresh token")
		}
		return models.SessionTokens{}, apperr.Internal("failed to load account", err)
	}

	if subtle.ConstantTimeCompare([]byte(account.RefreshToken), []byte(presented)) != 1 {
		logger.Warn("refresh token reuse rejected", "accountId", account.ID)
		metrics.AuthEvent("refresh", "reuse")
		return models.SessionTokens{}, errTokenReused()
	}

	tokens, err := m.tokens.Issue(account)
	if err != nil {
		return models.SessionTokens{}, apperr.Internal("failed to issue tokens", err)
	}

	if err := m.accounts.SwapRefreshToken(ctx, account.ID, presented, tokens.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrStaleToken) {
			logger.Warn("refresh token rotated concurrently", "accountId", account.ID)
			metrics.AuthEvent("refresh", "reuse")
			return models.SessionTokens{}, errTokenReused()
		}
		return models.SessionTokens{}, apperr.Internal("failed to rotate session", err)
	}

	metrics.AuthEvent("refresh", "success")
	return tokens, nil
}

// Logout clears the account's session slot. It is idempotent.
func (m *Manager) Logout(ctx context.Context, accountID string) error {
	if err := m.accounts.ClearRefreshToken(ctx, accountID); err != nil {
		return apperr.Internal("failed to clear session", err)
	}
	metrics.AuthEvent("logout", "success")
	return nil
}

// ChangePassword replaces the password hash after verifying the old secret.
// The current session slot is left untouched.
func (m *Manager) ChangePassword(ctx context.Context, accountID, oldSecret, newSecret string) error {
	if oldSecret == "" || newSecret == "" {
		return apperr.Validation("old and new passwords are required")
	}
	if len(newSecret) < MinPasswordLength {
		return apperr.Validation("password must be at least 8 characters")
	}

	account, err := m.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.Internal("failed to load account", err)
	}

	if !VerifyPassword(account.PasswordHash, oldSecret) {
		return apperr.Unauthorized("invalid old password")
	}

	hash, err := HashPassword(newSecret)
	if err != nil {
		return apperr.Internal("failed to secure password", err)
	}

	if err := m.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.Internal("failed to update password", err)
	}

	return nil
}

// AccessTTL and RefreshTTL expose the issuer lifetimes for cookie alignment.
func (m *Manager) AccessTTL() time.Duration  { return m.tokens.AccessTTL() }
func (m *Manager) RefreshTTL() time.Duration { return m.tokens.RefreshTTL() }

func errTokenReused() error {
	return apperr.Unauthorized("refresh token is expired or used")
}
