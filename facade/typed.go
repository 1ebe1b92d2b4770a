package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/stevemurr/bizstore/collection"
	"github.com/stevemurr/bizstore/common"
	"github.com/stevemurr/bizstore/entity"
)

// Record is satisfied by a pointer to any entity variant.
type Record[T any] interface {
	*T
	entity.Entity
	Base() *entity.Meta
}

// Create assigns a fresh id with the kind's prefix when v has none, then saves it.
func Create[T any, P Record[T]](ctx context.Context, ss *Session, v T) (T, error) {
	p := P(&v)
	if p.Base().ID == "" {
		p.Base().ID = ss.GenerateID(entity.Describe(p).Prefix)
	}
	return Save[T, P](ctx, ss, v)
}

// Save upserts v into its kind's collection and returns what was stored.
// updatedAt is always stamped with the current time; createdAt is kept.
func Save[T any, P Record[T]](ctx context.Context, ss *Session, v T) (T, error) {
	var zero T
	p := P(&v)
	p.Base().UpdatedAt = time.Time{}
	doc, err := collection.FromValue(v)
	if err != nil {
		return zero, err
	}
	saved, err := ss.Add(ctx, entity.Describe(p).Collection, doc)
	if err != nil {
		return zero, err
	}
	return decode[T](saved)
}

// Get loads one record of T's kind by id.
func Get[T any, P Record[T]](ctx context.Context, ss *Session, id string) (T, error) {
	var zero T
	doc, err := ss.Get(ctx, entity.Describe(P(&zero)).Collection, id)
	if err != nil {
		return zero, err
	}
	return decode[T](doc)
}

// List returns every record of T's kind in createdAt order.
func List[T any, P Record[T]](ctx context.Context, ss *Session) ([]T, error) {
	var zero T
	docs, err := ss.GetAll(ctx, entity.Describe(P(&zero)).Collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Delete removes the record of T's kind with id.
func Delete[T any, P Record[T]](ctx context.Context, ss *Session, id string) error {
	var zero T
	return ss.Remove(ctx, entity.Describe(P(&zero)).Collection, id)
}

func decode[T any](doc collection.Document) (T, error) {
	var v T
	if err := doc.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: decode %s: %w", common.ErrStorageFailure, doc.ID(), err)
	}
	return v, nil
}
