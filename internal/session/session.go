// Package session provides the signed-in user to the chat and case clients.
package session

import (
	"context"

	"github.com/mahawthada/legal-assistant/internal/types"
)

// Provider reports the signed-in user, if any.
type Provider interface {
	CurrentUser() (*types.User, bool)
}

// Static always reports the same user. A nil user means signed out.
type Static struct {
	user *types.User
}

// NewStatic returns a provider for user.
func NewStatic(user *types.User) *Static {
	return &Static{user: user}
}

func (s *Static) CurrentUser() (*types.User, bool) {
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

type contextKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// FromContext returns the user stored by WithUser.
func FromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*types.User)
	return user, ok && user != nil
}
