// Package actor describes the signed-in panel user a request acts for.
package actor

import (
	"context"

	"github.com/ohdear-panel/internal/domain/permission"
)

type Actor struct {
	ID          string
	Name        string
	Roles       []string
	Permissions permission.Set
}

// Can reports whether the actor holds key. A nil actor holds nothing.
func (a *Actor) Can(key permission.Key) bool {
	return a != nil && a.Permissions.Has(key)
}

// PermissionSet returns the actor's permissions, or nil for a nil actor.
func (a *Actor) PermissionSet() *permission.Set {
	if a == nil {
		return nil
	}
	return &a.Permissions
}

type contextKey struct{}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the actor stored in ctx, or nil.
func FromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(contextKey{}).(*Actor)
	return a
}
