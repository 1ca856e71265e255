package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
)

// ProfileReader loads an account without its credential fields.
type ProfileReader interface {
	FindProfileByID(ctx context.Context, id string) (models.Account, error)
}

// Authenticator resolves an access token into the account it was issued to.
type Authenticator struct {
	tokens   *TokenIssuer
	accounts ProfileReader
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(tokens *TokenIssuer, accounts ProfileReader) *Authenticator {
	if tokens == nil || accounts == nil {
		panic("auth: authenticator dependencies must not be nil")
	}
	return &Authenticator{tokens: tokens, accounts: accounts}
}

// Authenticate verifies raw and loads the account it names. Every failure is
// reported as unauthorized. Credentials are never loaded.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (models.Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Account{}, apperr.Unauthorized("unauthorized request")
	}

	claims, err := a.tokens.VerifyAccess(raw)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindUnauthorized, "invalid access token", err)
	}

	account, err := a.accounts.FindProfileByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Account{}, apperr.Unauthorized("invalid access token")
		}
		return models.Account{}, apperr.Internal("failed to load account", err)
	}

	return account, nil
}
