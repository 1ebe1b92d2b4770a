// Package scope decides which visibility partition a collection access falls
// into. A partition is either the shared global catalog or one user's records.
package scope

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind identifies the visibility partition of a Scope.
type Kind int

const (
	KindGlobal Kind = iota
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

const (
	globalMarker = "global"
	userPrefix   = "user:"
)

// Scope is a resolved partition. The zero value is the global scope.
type Scope struct {
	Kind   Kind
	UserID string
}

func Global() Scope { return Scope{Kind: KindGlobal} }

func User(id string) Scope { return Scope{Kind: KindUser, UserID: id} }

// String returns "global" or "user:<id>", the form used as the storage prefix.
func (s Scope) String() string {
	if s.Kind == KindUser {
		return userPrefix + s.UserID
	}
	return globalMarker
}

// Parse is the inverse of String.
func Parse(s string) (Scope, error) {
	switch {
	case s == globalMarker:
		return Global(), nil
	case strings.HasPrefix(s, userPrefix) && len(s) > len(userPrefix):
		return User(strings.TrimPrefix(s, userPrefix)), nil
	}
	return Scope{}, fmt.Errorf("invalid scope %q", s)
}

// PathSegments returns filesystem-safe directory names for the scope,
// e.g. ["global"] or ["users", "616c696365"]. The user id is hex encoded so
// ids differing only in case stay apart on case-insensitive filesystems.
func (s Scope) PathSegments() []string {
	if s.Kind == KindUser {
		seg := hex.EncodeToString([]byte(s.UserID))
		if seg == "" {
			seg = "_"
		}
		return []string{"users", seg}
	}
	return []string{globalMarker}
}
