package scope

import (
	"fmt"

	"github.com/stevemurr/bizstore/common"
	"github.com/stevemurr/bizstore/identity"
)

// MastersCollection holds the shared lookup lists.
const MastersCollection = "masters"

// Resolver maps (identity, collection) to a Scope using a static table of
// global collections. Every collection not in the table is user-scoped.
// It holds no other state and is safe for concurrent use once built.
type Resolver struct {
	global map[string]bool
}

type Option func(*Resolver)

// WithGlobal marks additional collections as shared across users.
func WithGlobal(collections ...string) Option {
	return func(r *Resolver) {
		for _, c := range collections {
			r.global[c] = true
		}
	}
}

// WithUserScoped marks collections as per-user, overriding the default table.
// Use it to give each operator a private master catalog.
func WithUserScoped(collections ...string) Option {
	return func(r *Resolver) {
		for _, c := range collections {
			delete(r.global, c)
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{global: map[string]bool{MastersCollection: true}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsGlobal reports whether collection is shared regardless of identity.
func (r *Resolver) IsGlobal(collection string) bool {
	return r.global[collection]
}

// Resolve computes the effective scope. A user-scoped collection accessed
// without an identity fails with common.ErrUnauthorizedAccess.
func (r *Resolver) Resolve(id identity.Identity, collection string) (Scope, error) {
	if r.IsGlobal(collection) {
		return Global(), nil
	}
	if !id.IsAuthenticated() {
		return Scope{}, fmt.Errorf("%w: collection %q requires a signed-in user", common.ErrUnauthorizedAccess, collection)
	}
	return User(id.UserID), nil
}
