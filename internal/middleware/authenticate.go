package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/response"
)

// AccessTokenCookie carries the access token for browser clients.
const AccessTokenCookie = "accessToken"

// Authenticator resolves an access token into an account.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (models.Account, error)
}

// RequireAuth rejects requests without a valid access token and stores the
// authenticated account on the request context.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := AccessToken(r)
			if raw == "" {
				response.Error(r.Context(), w, apperr.Unauthorized("unauthorized request"))
				return
			}

			account, err := authn.Authenticate(r.Context(), raw)
			if err != nil {
				response.Error(r.Context(), w, err)
				return
			}

			ctx := auth.WithAccount(r.Context(), account)
			ctx = logging.WithAccountID(ctx, account.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the access token from the cookie or the
// Authorization bearer header, preferring the cookie.
func AccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
