package collection

import (
	"context"
	"fmt"

	"github.com/stevemurr/bizstore/common"
)

// SchemaFor returns the schema records in collection are validated against:
// a stored schema if one was registered, otherwise the built-in one, otherwise nil.
func (s *Store) SchemaFor(ctx context.Context, collection string) (map[string]any, error) {
	sch, err := s.backend.GetSchema(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: get schema %s: %w", common.ErrStorageFailure, collection, err)
	}
	if sch != nil {
		return sch, nil
	}
	return builtinSchema(collection), nil
}

// PutSchema registers a schema that overrides the built-in one for collection.
func (s *Store) PutSchema(ctx context.Context, collection string, sch map[string]any) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if sch == nil {
		return fmt.Errorf("%w: nil schema", common.ErrValidationFailure)
	}
	if err := s.backend.PutSchema(ctx, collection, sch); err != nil {
		return fmt.Errorf("%w: put schema %s: %w", common.ErrStorageFailure, collection, err)
	}
	s.log.Info(ctx, "schema registered", "collection", collection)
	return nil
}

// DeleteSchema drops a stored schema. Returns common.ErrNotFound if none was stored.
func (s *Store) DeleteSchema(ctx context.Context, collection string) error {
	existed, err := s.backend.DeleteSchema(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: delete schema %s: %w", common.ErrStorageFailure, collection, err)
	}
	if !existed {
		return fmt.Errorf("%w: schema %s", common.ErrNotFound, collection)
	}
	s.log.Info(ctx, "schema removed", "collection", collection)
	return nil
}

// Schemas returns the stored schemas only; built-in ones are not listed.
func (s *Store) Schemas(ctx context.Context) (map[string]map[string]any, error) {
	all, err := s.backend.ListSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list schemas: %w", common.ErrStorageFailure, err)
	}
	if all == nil {
		all = map[string]map[string]any{}
	}
	return all, nil
}
