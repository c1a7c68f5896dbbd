package middleware

import (
	"context"

	"github.com/gosuda/prime/internal/domain"
)

type contextKey string

const ContextKeyUser contextKey = "user"

// WithUser returns a copy of ctx carrying the authenticated caller.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, u)
}

func UserFromContext(ctx context.Context) (domain.User, bool) {
	v, ok := ctx.Value(ContextKeyUser).(domain.User)
	return v, ok
}
