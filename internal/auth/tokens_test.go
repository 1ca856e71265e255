package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/channelhub/backend/internal/models"
)

func TestTokenIssuerIssueAndVerify(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)
	account := models.Account{ID: "account-1", Username: "alice", Email: "alice@example.com", FullName: "Alice"}

	tokens, err := issuer.Issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !tokens.AccessExpiresAt.Equal(clock.Now().Add(time.Minute)) {
		t.Fatalf("unexpected access expiry %v", tokens.AccessExpiresAt)
	}
	if !tokens.RefreshExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected refresh expiry %v", tokens.RefreshExpiresAt)
	}

	access, err := issuer.VerifyAccess(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if access.Subject != account.ID || access.Username != "alice" || access.Email != "alice@example.com" {
		t.Fatalf("unexpected access claims: %+v", access)
	}

	refresh, err := issuer.VerifyRefresh(tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if refresh.Subject != account.ID {
		t.Fatalf("unexpected refresh subject %q", refresh.Subject)
	}
}

func TestTokenIssuerTokensAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t, newFakeClock())
	tokens, err := issuer.Issue(models.Account{ID: "account-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := issuer.VerifyAccess(tokens.RefreshToken); err == nil {
		t.Fatal("expected refresh token to be rejected as access token")
	}
	if _, err := issuer.VerifyRefresh(tokens.AccessToken); err == nil {
		t.Fatal("expected access token to be rejected as refresh token")
	}
}

func TestTokenIssuerSameSecretStillSeparatesAudiences(t *testing.T) {
	issuer, err := NewTokenIssuer(TokenConfig{AccessSecret: "shared", RefreshSecret: "shared"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tokens, err := issuer.Issue(models.Account{ID: "account-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.VerifyAccess(tokens.RefreshToken); !errors.Is(err, jwt.ErrTokenInvalidAudience) {
		t.Fatalf("expected invalid audience, got %v", err)
	}
}

func TestTokenIssuerRejectsExpiredAndForeignTokens(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)
	tokens, err := issuer.Issue(models.Account{ID: "account-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := issuer.VerifyAccess(tokens.AccessToken); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired access token, got %v", err)
	}
	if _, err := issuer.VerifyRefresh(tokens.RefreshToken); err != nil {
		t.Fatalf("refresh token should still be valid: %v", err)
	}

	other, err := NewTokenIssuer(TokenConfig{AccessSecret: "other-access", RefreshSecret: "other-refresh", Now: clock.Now})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if _, err := other.VerifyRefresh(tokens.RefreshToken); !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestTokenIssuerIssueTwiceInSameInstantDiffers(t *testing.T) {
	issuer := newTestIssuer(t, newFakeClock())
	account := models.Account{ID: "account-1"}

	first, err := issuer.Issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := issuer.Issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if first.RefreshToken == second.RefreshToken || first.AccessToken == second.AccessToken {
		t.Fatal("expected distinct tokens for identical claims")
	}
}

func TestNewTokenIssuerRequiresSecrets(t *testing.T) {
	if _, err := NewTokenIssuer(TokenConfig{AccessSecret: "a"}); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
	if _, err := newTestIssuer(t, newFakeClock()).Issue(models.Account{}); err == nil {
		t.Fatal("expected error for empty account id")
	}
}
