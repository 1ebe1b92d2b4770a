// Package store defines the raw backing store interface and its implementations.
//
// A backend only moves opaque serialized documents around. Typing, validation,
// timestamps and scope resolution live in the layers above it.
package store

import (
	"context"

	"github.com/stevemurr/bizstore/scope"
)

// Namespace addresses one collection inside one scope.
type Namespace struct {
	Scope      scope.Scope
	Collection string
}

func (n Namespace) String() string { return n.Scope.String() + "/" + n.Collection }

// Store is the interface that all backing stores must implement.
// Documents within a Namespace are keyed by record id.
type Store interface {
	// GetAll returns every document in a namespace as a map of id -> document.
	// A namespace that was never written is empty, not an error.
	GetAll(ctx context.Context, ns Namespace) (map[string][]byte, error)

	// Get returns a single document by id, or nil if not found.
	Get(ctx context.Context, ns Namespace, id string) ([]byte, error)

	// Put inserts or replaces a document.
	Put(ctx context.Context, ns Namespace, id string, data []byte) error

	// Delete removes a document. Returns true if it existed.
	Delete(ctx context.Context, ns Namespace, id string) (bool, error)

	// ListCollections returns the names of the collections in sc that contain data.
	ListCollections(ctx context.Context, sc scope.Scope) ([]string, error)

	// GetSchema returns the JSON Schema registered for a collection, or nil.
	GetSchema(ctx context.Context, collection string) (map[string]any, error)

	// PutSchema stores a JSON Schema for a collection.
	PutSchema(ctx context.Context, collection string, schema map[string]any) error

	// DeleteSchema removes the schema for a collection. Returns true if it existed.
	DeleteSchema(ctx context.Context, collection string) (bool, error)

	// ListSchemas returns all schemas as collection_name -> schema.
	ListSchemas(ctx context.Context) (map[string]map[string]any, error)

	Close() error
}
