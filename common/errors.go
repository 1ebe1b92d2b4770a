// Package common defines the sentinel errors shared by every layer of the
// store. Callers should match them with errors.Is; wrapped errors usually
// carry both a category below and the underlying cause.
package common

import "errors"

var (
	// ErrStorageFailure reports that the underlying store was unreachable,
	// over quota, or returned data that could not be decoded.
	ErrStorageFailure = errors.New("storage failure")

	// ErrValidationFailure reports a record or name rejected before it was written.
	ErrValidationFailure = errors.New("validation failure")

	// ErrUnauthorizedAccess reports a user-scoped access attempted without an identity.
	ErrUnauthorizedAccess = errors.New("unauthorized access")

	// ErrNotFound is returned by single-record lookups. GetAll and Remove never return it.
	ErrNotFound = errors.New("not found")
)
