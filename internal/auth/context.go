package auth

import (
	"context"

	"github.com/channelhub/backend/internal/models"
)

type ctxKey struct{}

// WithAccount stores the authenticated account on the context.
func WithAccount(ctx context.Context, account models.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, account)
}

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (models.Account, bool) {
	if ctx == nil {
		return models.Account{}, false
	}
	account, ok := ctx.Value(ctxKey{}).(models.Account)
	return account, ok && account.ID != ""
}
