// Package identity models the single fact the store consumes from the
// authentication layer: whether a user is signed in, and their stable id.
package identity

import "context"

// Identity is the signed-in user, or Anonymous when UserID is empty.
type Identity struct {
	UserID string
}

// Anonymous is the absence of a signed-in user.
var Anonymous = Identity{}

func (i Identity) IsAuthenticated() bool { return i.UserID != "" }

// Provider yields the current identity for a request or UI session.
type Provider interface {
	Current(ctx context.Context) Identity
}

// Static always reports the same identity. It stands in for a real
// authentication provider in the CLI and in tests.
type Static Identity

func (s Static) Current(context.Context) Identity { return Identity(s) }

// ContextProvider reads the identity attached by WithIdentity.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) Identity { return FromContext(ctx) }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok {
		return Anonymous
	}
	return id
}
