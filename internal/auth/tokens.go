package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/models"
)

const (
	accessAudience  = "channelhub:access"
	refreshAudience = "channelhub:refresh"
)

var (
	// ErrSecretRequired indicates a signing secret was not configured.
	ErrSecretRequired = errors.New("token signing secret is required")
	// ErrMissingSubject indicates a verified token carries no account identifier.
	ErrMissingSubject = errors.New("token has no subject")
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. The two
// token kinds use different secrets and audiences and are not interchangeable.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrSecretRequired
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 10 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}, nil
}

// AccessTTL reports the lifetime of issued access tokens.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL reports the lifetime of issued refresh tokens.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// Issue creates a fresh access and refresh token pair for the account.
func (t *TokenIssuer) Issue(account models.Account) (models.SessionTokens, error) {
	if account.ID == "" {
		return models.SessionTokens{}, errors.New("account id must be provided")
	}

	now := t.now().UTC()
	accessExpires := now.Add(t.accessTTL)
	refreshExpires := now.Add(t.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Username: account.Username,
		Email:    account.Email,
		FullName: account.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Audience:  jwt.ClaimStrings{accessAudience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpires),
		},
	})
	accessToken, err := access.SignedString(t.accessSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   account.ID,
		Audience:  jwt.ClaimStrings{refreshAudience},
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(refreshExpires),
	})
	refreshToken, err := refresh.SignedString(t.refreshSecret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

// VerifyAccess checks signature, audience and expiry of an access token.
func (t *TokenIssuer) VerifyAccess(raw string) (AccessClaims, error) {
	var claims AccessClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, secretKey(t.accessSecret), t.parserOptions(accessAudience)...); err != nil {
		return AccessClaims{}, fmt.Errorf("verify access token: %w", err)
	}
	if claims.Subject == "" {
		return AccessClaims{}, ErrMissingSubject
	}
	return claims, nil
}

// VerifyRefresh checks signature, audience and expiry of a refresh token.
func (t *TokenIssuer) VerifyRefresh(raw string) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, secretKey(t.refreshSecret), t.parserOptions(refreshAudience)...); err != nil {
		return jwt.RegisteredClaims{}, fmt.Errorf("verify refresh token: %w", err)
	}
	if claims.Subject == "" {
		return jwt.RegisteredClaims{}, ErrMissingSubject
	}
	return claims, nil
}

func (t *TokenIssuer) parserOptions(audience string) []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(t.now),
	}
}

func secretKey(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}
}
