package authctx

import (
	"context"

	"auth-shell/internal/auth"
)

// State is what a request knows about the browser's authentication.
type State struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	User            auth.User `json:"user,omitempty"`
	IsLoading       bool      `json:"isLoading"`
}

// Value is the per-request auth context: the resolved state plus access to
// the delegating operations of the Provider.
type Value struct {
	State
	SessionID string

	provider *Provider
}

func (v *Value) Provider() *Provider {
	return v.provider
}

type ctxKey struct{}

func WithValue(ctx context.Context, v *Value) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

// FromContext returns the auth context of a mounted request.
func FromContext(ctx context.Context) (*Value, error) {
	v, ok := ctx.Value(ctxKey{}).(*Value)
	if !ok || v == nil {
		return nil, ErrNoProvider
	}
	return v, nil
}
