// Package collection implements the record store: create, read-all and delete
// of JSON records keyed by id, per collection and per scope.
//
// Writes are upserts. Add stores a record as given and only fills timestamps
// that are missing; Update merges fields into an existing record, keeps its id
// and createdAt, and refreshes updatedAt. Concurrent writes to the same id are
// last-write-wins by completion order.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/stevemurr/bizstore/common"
	"github.com/stevemurr/bizstore/entity"
	"github.com/stevemurr/bizstore/logging"
	"github.com/stevemurr/bizstore/notify"
	"github.com/stevemurr/bizstore/schema"
	"github.com/stevemurr/bizstore/scope"
	"github.com/stevemurr/bizstore/store"
)

type Store struct {
	backend store.Store
	hub     *notify.Hub
	log     logging.Logger
	now     func() time.Time
}

type Option func(*Store)

// WithHub publishes every successful write to hub.
func WithHub(hub *notify.Hub) Option {
	return func(s *Store) { s.hub = hub }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(backend store.Store, opts ...Option) *Store {
	s := &Store{backend: backend, log: logging.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func storageErr(op string, ns store.Namespace, err error) error {
	return fmt.Errorf("%w: %s %s: %w", common.ErrStorageFailure, op, ns, err)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Truncate(time.Millisecond).Format(TimeLayout)
}

func (s *Store) publish(ns store.Namespace, id string, op notify.Op) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(notify.Event{Scope: ns.Scope.String(), Collection: ns.Collection, ID: id, Op: op})
}

// Add upserts doc under (sc, collection, doc.id) and returns the persisted record.
// Missing timestamps are filled in; an existing record's createdAt is kept when
// doc has none.
func (s *Store) Add(ctx context.Context, sc scope.Scope, collection string, doc Document) (Document, error) {
	ns := store.Namespace{Scope: sc, Collection: collection}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	rec, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	if err := checkReserved(rec); err != nil {
		return nil, err
	}

	now := s.timestamp()
	if _, ok := rec[FieldCreatedAt]; !ok {
		existing, err := s.get(ctx, ns, rec.ID())
		if err != nil {
			return nil, err
		}
		if created, ok := existing[FieldCreatedAt]; ok {
			rec[FieldCreatedAt] = created
		} else {
			rec[FieldCreatedAt] = now
		}
	}
	if _, ok := rec[FieldUpdatedAt]; !ok {
		rec[FieldUpdatedAt] = now
	}
	return s.put(ctx, ns, rec)
}

// Update merges patch into the stored record with the same id. Fields set to
// null are removed. id and createdAt are never changed; updatedAt is set to now.
// Updating a record that does not exist fails with common.ErrNotFound.
func (s *Store) Update(ctx context.Context, sc scope.Scope, collection string, patch Document) (Document, error) {
	ns := store.Namespace{Scope: sc, Collection: collection}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	p, err := normalize(patch)
	if err != nil {
		return nil, err
	}
	id := p.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: record is missing a non-empty string %q", common.ErrValidationFailure, FieldID)
	}
	rec, err := s.get(ctx, ns, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, ns, id)
	}
	for k, v := range p {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		if v == nil {
			delete(rec, k)
			continue
		}
		rec[k] = v
	}
	rec[FieldUpdatedAt] = s.timestamp()
	if _, ok := rec[FieldCreatedAt]; !ok {
		rec[FieldCreatedAt] = rec[FieldUpdatedAt]
	}
	if err := checkReserved(rec); err != nil {
		return nil, err
	}
	return s.put(ctx, ns, rec)
}

func (s *Store) put(ctx context.Context, ns store.Namespace, rec Document) (Document, error) {
	if err := s.validate(ctx, ns, rec); err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidationFailure, err)
	}
	if err := s.backend.Put(ctx, ns, rec.ID(), data); err != nil {
		return nil, storageErr("put", ns, err)
	}
	s.log.Debug(ctx, "record saved", "namespace", ns.String(), "id", rec.ID())
	s.publish(ns, rec.ID(), notify.OpPut)
	return rec, nil
}

func (s *Store) validate(ctx context.Context, ns store.Namespace, rec Document) error {
	sch, err := s.SchemaFor(ctx, ns.Collection)
	if err != nil {
		return err
	}
	if err := schema.Validate(sch, map[string]any(rec)); err != nil {
		return fmt.Errorf("%w: %s: %w", common.ErrValidationFailure, ns.Collection, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, ns store.Namespace, id string) (Document, error) {
	raw, err := s.backend.Get(ctx, ns, id)
	if err != nil {
		return nil, storageErr("get", ns, err)
	}
	if raw == nil {
		return nil, nil
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, storageErr("decode", ns, err)
	}
	return doc, nil
}

// Get returns one record, or common.ErrNotFound.
func (s *Store) Get(ctx context.Context, sc scope.Scope, collection, id string) (Document, error) {
	ns := store.Namespace{Scope: sc, Collection: collection}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	doc, err := s.get(ctx, ns, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s/%s", common.ErrNotFound, ns, id)
	}
	return doc, nil
}

// GetAll returns every record in (sc, collection) ordered by createdAt, then id.
// An empty or never-written collection yields an empty slice.
func (s *Store) GetAll(ctx context.Context, sc scope.Scope, collection string) ([]Document, error) {
	ns := store.Namespace{Scope: sc, Collection: collection}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	raw, err := s.backend.GetAll(ctx, ns)
	if err != nil {
		return nil, storageErr("get all", ns, err)
	}
	docs := make([]Document, 0, len(raw))
	for id, b := range raw {
		doc, err := decodeDocument(b)
		if err != nil {
			return nil, storageErr("decode "+id, ns, err)
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		ci, cj := docs[i].CreatedAt(), docs[j].CreatedAt()
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return docs[i].ID() < docs[j].ID()
	})
	return docs, nil
}

// Remove deletes a record. Removing an id that is not present is not an error.
func (s *Store) Remove(ctx context.Context, sc scope.Scope, collection, id string) error {
	ns := store.Namespace{Scope: sc, Collection: collection}
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	existed, err := s.backend.Delete(ctx, ns, id)
	if err != nil {
		return storageErr("delete", ns, err)
	}
	if existed {
		s.log.Debug(ctx, "record removed", "namespace", ns.String(), "id", id)
		s.publish(ns, id, notify.OpDelete)
	}
	return nil
}

// Collections lists the non-empty collections visible in sc.
func (s *Store) Collections(ctx context.Context, sc scope.Scope) ([]string, error) {
	names, err := s.backend.ListCollections(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("%w: list collections %s: %w", common.ErrStorageFailure, sc, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// normalize round-trips doc through JSON so it holds only JSON types and
// callers keep ownership of the map they passed in.
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil record", common.ErrValidationFailure)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidationFailure, err)
	}
	out, err := decodeDocument(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidationFailure, err)
	}
	return out, nil
}

// IsNotFound is shorthand for errors.Is(err, common.ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, common.ErrNotFound) }

// builtinSchema is consulted when no schema is stored for a collection.
var builtinSchema = entity.SchemaFor
