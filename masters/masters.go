// Package masters serves the tagged lookup lists (categories, suppliers, units)
// that selection widgets read. Entries live in one shared collection and are
// filtered by type.
//
// Values are unique per (scope, type) after normalization, enforced at write
// time. An empty list is valid data; callers pick their own defaults with
// WithFallback.
package masters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/stevemurr/bizstore/collection"
	"github.com/stevemurr/bizstore/common"
	"github.com/stevemurr/bizstore/entity"
	"github.com/stevemurr/bizstore/ident"
	"github.com/stevemurr/bizstore/logging"
	"github.com/stevemurr/bizstore/notify"
	"github.com/stevemurr/bizstore/scope"
)

// DefaultPollInterval bounds how stale a watcher's view can get when no
// write notification reaches it.
const DefaultPollInterval = 30 * time.Second

type Service struct {
	records  *collection.Store
	hub      *notify.Hub
	ids      *ident.Generator
	log      logging.Logger
	interval time.Duration

	// mu makes the duplicate check and the write one step for writers in this process.
	mu sync.Mutex
}

type Option func(*Service)

// WithHub lets watchers refresh as soon as the masters collection changes.
func WithHub(h *notify.Hub) Option { return func(s *Service) { s.hub = h } }

func WithLogger(l logging.Logger) Option { return func(s *Service) { s.log = l } }

func WithIDs(g *ident.Generator) Option { return func(s *Service) { s.ids = g } }

// WithPollInterval sets the interval Watch uses when called with zero.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

func New(records *collection.Store, opts ...Option) *Service {
	s := &Service{
		records:  records,
		ids:      ident.New(),
		log:      logging.Discard(),
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize is the comparison form of a type or value: trimmed, inner runs of
// whitespace collapsed, NFC composed and case folded.
func Normalize(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	return cases.Fold().String(norm.NFC.String(v))
}

// All returns every entry in sc, in store order.
func (s *Service) All(ctx context.Context, sc scope.Scope) ([]entity.MasterEntry, error) {
	docs, err := s.records.GetAll(ctx, sc, entity.MastersCollection)
	if err != nil {
		return nil, err
	}
	out := make([]entity.MasterEntry, 0, len(docs))
	for _, d := range docs {
		var m entity.MasterEntry
		if err := d.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: decode master %s: %w", common.ErrStorageFailure, d.ID(), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ByType returns the entries tagged typ. Type matching ignores case and
// surrounding whitespace.
func (s *Service) ByType(ctx context.Context, sc scope.Scope, typ string) ([]entity.MasterEntry, error) {
	all, err := s.All(ctx, sc)
	if err != nil {
		return nil, err
	}
	want := Normalize(typ)
	out := make([]entity.MasterEntry, 0, len(all))
	for _, m := range all {
		if Normalize(m.Type) == want {
			out = append(out, m)
		}
	}
	return out, nil
}

// Types lists the distinct types present in sc, sorted.
func (s *Service) Types(ctx context.Context, sc scope.Scope) ([]string, error) {
	all, err := s.All(ctx, sc)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	types := []string{}
	for _, m := range all {
		t := strings.TrimSpace(m.Type)
		if !seen[Normalize(t)] {
			seen[Normalize(t)] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types, nil
}

// Add writes e, generating an id when it has none. If another entry already
// holds the same normalized (type, value), that entry is returned instead and
// nothing is written; rewriting an existing id onto a value owned by a
// different entry fails with common.ErrValidationFailure. Re-saving an
// existing entry refreshes its updatedAt.
func (s *Service) Add(ctx context.Context, sc scope.Scope, e entity.MasterEntry) (entity.MasterEntry, error) {
	e.Type = strings.TrimSpace(e.Type)
	e.Value = strings.TrimSpace(e.Value)
	if e.Type == "" || e.Value == "" {
		return entity.MasterEntry{}, fmt.Errorf("%w: master entry needs a type and a value", common.ErrValidationFailure)
	}
	if e.ID == "" {
		e.ID = s.ids.Next(entity.Describe(e).Prefix)
	}
	doc, err := collection.FromValue(e)
	if err != nil {
		return entity.MasterEntry{}, err
	}

	saved, err := s.write(ctx, sc, doc, true)
	if err != nil {
		return entity.MasterEntry{}, err
	}
	var out entity.MasterEntry
	if err := saved.Decode(&out); err != nil {
		return entity.MasterEntry{}, fmt.Errorf("%w: decode master %s: %w", common.ErrStorageFailure, saved.ID(), err)
	}
	return out, nil
}

// AddDocument upserts doc into the masters collection as given, keeping every
// field and timestamp it carries, after the same duplicate check as Add.
// doc must already have an id.
func (s *Service) AddDocument(ctx context.Context, sc scope.Scope, doc collection.Document) (collection.Document, error) {
	if doc.ID() == "" {
		return nil, fmt.Errorf("%w: record is missing a non-empty string %q", common.ErrValidationFailure, collection.FieldID)
	}
	typ, _ := doc["type"].(string)
	value, _ := doc["value"].(string)
	if strings.TrimSpace(typ) == "" || strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("%w: master entry needs a type and a value", common.ErrValidationFailure)
	}
	return s.write(ctx, sc, doc, false)
}

// write stores doc unless its (type, value) is already taken. With refresh set,
// an existing entry gets a new updatedAt instead of the one in doc.
func (s *Service) write(ctx context.Context, sc scope.Scope, doc collection.Document, refresh bool) (collection.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.records.GetAll(ctx, sc, entity.MastersCollection)
	if err != nil {
		return nil, err
	}
	id := doc.ID()
	typ, _ := doc["type"].(string)
	value, _ := doc["value"].(string)
	key := Normalize(typ) + "\x00" + Normalize(value)

	var (
		dup    collection.Document
		exists bool
	)
	for _, d := range docs {
		if d.ID() == id {
			exists = true
			continue
		}
		t, _ := d["type"].(string)
		v, _ := d["value"].(string)
		if Normalize(t)+"\x00"+Normalize(v) == key {
			dup = d
		}
	}
	if dup != nil {
		if exists {
			return nil, fmt.Errorf("%w: %s %q already exists as %s",
				common.ErrValidationFailure, strings.TrimSpace(typ), strings.TrimSpace(value), dup.ID())
		}
		s.log.Debug(ctx, "master entry deduplicated", "scope", sc.String(), "type", typ, "id", dup.ID())
		return dup, nil
	}

	if exists && refresh {
		delete(doc, collection.FieldUpdatedAt)
	}
	return s.records.Add(ctx, sc, entity.MastersCollection, doc)
}

// Remove deletes an entry. Missing ids are not an error.
func (s *Service) Remove(ctx context.Context, sc scope.Scope, id string) error {
	return s.records.Remove(ctx, sc, entity.MastersCollection, id)
}

// Watch calls fn with the entries of typ right away, then again every interval
// and whenever the masters collection in sc is written. A zero interval uses
// the service default. It blocks until ctx is done and returns ctx.Err().
// Failed refreshes are logged and skipped; fn keeps its last good list.
func (s *Service) Watch(ctx context.Context, sc scope.Scope, typ string, interval time.Duration, fn func([]entity.MasterEntry)) error {
	if interval <= 0 {
		interval = s.interval
	}

	var events <-chan notify.Event
	if s.hub != nil {
		want := sc.String()
		ch, cancel := s.hub.Subscribe(func(e notify.Event) bool {
			return e.Collection == entity.MastersCollection && e.Scope == want
		})
		defer cancel()
		events = ch
	}

	refresh := func() {
		entries, err := s.ByType(ctx, sc, typ)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn(ctx, "master refresh failed", "scope", sc.String(), "type", typ, "error", err)
			}
			return
		}
		fn(entries)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			refresh()
		}
	}
}

// WithFallback returns entries, or defaults when entries is empty.
func WithFallback(entries, defaults []entity.MasterEntry) []entity.MasterEntry {
	if len(entries) == 0 {
		return defaults
	}
	return entries
}

// FallbackValues builds default entries of typ from plain values.
func FallbackValues(typ string, values ...string) []entity.MasterEntry {
	out := make([]entity.MasterEntry, len(values))
	for i, v := range values {
		out[i] = entity.MasterEntry{Type: typ, Value: v}
	}
	return out
}
