// Package owner carries the id of the account an operation acts for.
package owner

import (
	"context"
	"strings"

	"github.com/vladimiradmaev/wellnest/internal/errors"
)

type ctxKey struct{}

// WithOwner returns a context that carries the owner id.
func WithOwner(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(id))
}

// FromContext returns the owner id carried by ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Resolver decides which owner an operation acts for.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ContextResolver reads the owner from the context. Fallback is used when the
// context has none; it is meant for tests and local development only and is
// empty in production.
type ContextResolver struct {
	Fallback string
}

func (r ContextResolver) Resolve(ctx context.Context) (string, error) {
	if id, ok := FromContext(ctx); ok {
		return id, nil
	}
	if r.Fallback != "" {
		return r.Fallback, nil
	}
	return "", errors.New(errors.ErrorTypePermission, "NO_OWNER", "no owner in request context")
}
