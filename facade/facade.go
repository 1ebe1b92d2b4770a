// Package facade is the single entry point the UI layer talks to. It wires
// identity, scope resolution, the collection store, master data and id
// generation behind a small surface.
//
// Identity is bound explicitly: callers obtain a Session for the current user
// and issue every operation through it.
package facade

import (
	"context"
	"sort"
	"time"

	"github.com/stevemurr/bizstore/collection"
	"github.com/stevemurr/bizstore/entity"
	"github.com/stevemurr/bizstore/ident"
	"github.com/stevemurr/bizstore/identity"
	"github.com/stevemurr/bizstore/logging"
	"github.com/stevemurr/bizstore/masters"
	"github.com/stevemurr/bizstore/notify"
	"github.com/stevemurr/bizstore/scope"
	"github.com/stevemurr/bizstore/store"
)

type options struct {
	log      logging.Logger
	now      func() time.Time
	ids      *ident.Generator
	resolver *scope.Resolver
	poll     time.Duration
}

type Option func(*options)

func WithLogger(l logging.Logger) Option { return func(o *options) { o.log = l } }

// WithClock fixes the time used for record timestamps and ids.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithIDs(g *ident.Generator) Option { return func(o *options) { o.ids = g } }

// WithResolver replaces the default scope table.
func WithResolver(r *scope.Resolver) Option { return func(o *options) { o.resolver = r } }

// WithMasterPollInterval sets the default WatchMasters interval.
func WithMasterPollInterval(d time.Duration) Option { return func(o *options) { o.poll = d } }

// Store owns the backend; Close releases it.
type Store struct {
	backend  store.Store
	records  *collection.Store
	masters  *masters.Service
	resolver *scope.Resolver
	ids      *ident.Generator
	hub      *notify.Hub
	log      logging.Logger
}

func New(backend store.Store, opts ...Option) *Store {
	o := options{log: logging.Discard(), now: time.Now, poll: masters.DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = ident.New(ident.WithClock(o.now))
	}
	if o.resolver == nil {
		o.resolver = scope.NewResolver()
	}

	hub := notify.NewHub()
	records := collection.New(backend,
		collection.WithHub(hub),
		collection.WithLogger(o.log),
		collection.WithClock(o.now),
	)
	return &Store{
		backend:  backend,
		records:  records,
		resolver: o.resolver,
		ids:      o.ids,
		hub:      hub,
		log:      o.log,
		masters: masters.New(records,
			masters.WithHub(hub),
			masters.WithIDs(o.ids),
			masters.WithLogger(o.log),
			masters.WithPollInterval(o.poll),
		),
	}
}

// GenerateID returns a fresh identifier such as "CUST-LXK3B2F01-9F2D4C3A".
// It needs no identity.
func (s *Store) GenerateID(prefix string) string { return s.ids.Next(prefix) }

// Records exposes the underlying collection store, e.g. for schema management.
func (s *Store) Records() *collection.Store { return s.records }

// Hub carries a notification for every successful write.
func (s *Store) Hub() *notify.Hub { return s.hub }

func (s *Store) Close() error { return s.backend.Close() }

// Session binds operations to id. Anonymous sessions can read and write
// global collections only.
func (s *Store) Session(id identity.Identity) *Session {
	return &Session{store: s, identity: id}
}

// SessionFor binds operations to whoever p reports for ctx.
func (s *Store) SessionFor(ctx context.Context, p identity.Provider) *Session {
	return s.Session(p.Current(ctx))
}

type Session struct {
	store    *Store
	identity identity.Identity
}

func (ss *Session) Identity() identity.Identity { return ss.identity }

func (ss *Session) resolve(collection string) (scope.Scope, error) {
	return ss.store.resolver.Resolve(ss.identity, collection)
}

// Scope reports where collection's records live for this session.
func (ss *Session) Scope(collection string) (scope.Scope, error) { return ss.resolve(collection) }

func (ss *Session) GenerateID(prefix string) string { return ss.store.GenerateID(prefix) }

// Add upserts doc. Writes to the masters collection go through the master
// data service and are deduplicated.
func (ss *Session) Add(ctx context.Context, coll string, doc collection.Document) (collection.Document, error) {
	sc, err := ss.resolve(coll)
	if err != nil {
		return nil, err
	}
	if coll == entity.MastersCollection {
		norm, err := collection.FromValue(doc)
		if err != nil {
			return nil, err
		}
		return ss.store.masters.AddDocument(ctx, sc, norm)
	}
	return ss.store.records.Add(ctx, sc, coll, doc)
}

func (ss *Session) Update(ctx context.Context, coll string, patch collection.Document) (collection.Document, error) {
	sc, err := ss.resolve(coll)
	if err != nil {
		return nil, err
	}
	return ss.store.records.Update(ctx, sc, coll, patch)
}

func (ss *Session) Get(ctx context.Context, coll, id string) (collection.Document, error) {
	sc, err := ss.resolve(coll)
	if err != nil {
		return nil, err
	}
	return ss.store.records.Get(ctx, sc, coll, id)
}

func (ss *Session) GetAll(ctx context.Context, coll string) ([]collection.Document, error) {
	sc, err := ss.resolve(coll)
	if err != nil {
		return nil, err
	}
	return ss.store.records.GetAll(ctx, sc, coll)
}

func (ss *Session) Remove(ctx context.Context, coll, id string) error {
	sc, err := ss.resolve(coll)
	if err != nil {
		return err
	}
	return ss.store.records.Remove(ctx, sc, coll, id)
}

// Collections lists the non-empty collections this session can see: the
// global ones, plus the user's own when signed in.
func (ss *Session) Collections(ctx context.Context) ([]string, error) {
	scopes := []scope.Scope{scope.Global()}
	if ss.identity.IsAuthenticated() {
		scopes = append(scopes, scope.User(ss.identity.UserID))
	}
	seen := map[string]bool{}
	names := []string{}
	for _, sc := range scopes {
		found, err := ss.store.records.Collections(ctx, sc)
		if err != nil {
			return nil, err
		}
		for _, n := range found {
			// Only report a name where this session would actually read it.
			if resolved, err := ss.resolve(n); err != nil || resolved != sc || seen[n] {
				continue
			}
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (ss *Session) GetMastersByType(ctx context.Context, typ string) ([]entity.MasterEntry, error) {
	sc, err := ss.resolve(entity.MastersCollection)
	if err != nil {
		return nil, err
	}
	return ss.store.masters.ByType(ctx, sc, typ)
}

// AddMaster stores e, assigning an id if needed. A duplicate value returns
// the entry already stored.
func (ss *Session) AddMaster(ctx context.Context, e entity.MasterEntry) (entity.MasterEntry, error) {
	sc, err := ss.resolve(entity.MastersCollection)
	if err != nil {
		return entity.MasterEntry{}, err
	}
	return ss.store.masters.Add(ctx, sc, e)
}

func (ss *Session) MasterTypes(ctx context.Context) ([]string, error) {
	sc, err := ss.resolve(entity.MastersCollection)
	if err != nil {
		return nil, err
	}
	return ss.store.masters.Types(ctx, sc)
}

// WatchMasters keeps fn supplied with the entries of typ until ctx is done.
// See masters.Service.Watch.
func (ss *Session) WatchMasters(ctx context.Context, typ string, interval time.Duration, fn func([]entity.MasterEntry)) error {
	sc, err := ss.resolve(entity.MastersCollection)
	if err != nil {
		return err
	}
	return ss.store.masters.Watch(ctx, sc, typ, interval, fn)
}
