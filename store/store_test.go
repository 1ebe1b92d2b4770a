package store_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/bizstore/scope"
	"github.com/stevemurr/bizstore/store"
)

var (
	aliceCustomers = store.Namespace{Scope: scope.User("alice"), Collection: "customers"}
	bobCustomers   = store.Namespace{Scope: scope.User("bob"), Collection: "customers"}
	globalMasters  = store.Namespace{Scope: scope.Global(), Collection: "masters"}
)

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetAll empty", func(t *testing.T) {
		docs, err := s.GetAll(ctx, store.Namespace{Scope: scope.Global(), Collection: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, aliceCustomers, "CUST-1", []byte(`{"id":"CUST-1","name":"Acme"}`)))
		got, err := s.Get(ctx, aliceCustomers, "CUST-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"CUST-1","name":"Acme"}`, string(got))
	})

	t.Run("Get missing", func(t *testing.T) {
		got, err := s.Get(ctx, aliceCustomers, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Put overwrites", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, aliceCustomers, "CUST-1", []byte(`{"id":"CUST-1","name":"Acme Ltd"}`)))
		docs, err := s.GetAll(ctx, aliceCustomers)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.JSONEq(t, `{"id":"CUST-1","name":"Acme Ltd"}`, string(docs["CUST-1"]))
	})

	t.Run("Put rejects invalid JSON", func(t *testing.T) {
		if _, ok := s.(*store.MemoryStore); ok {
			t.Skip("memory backend stores bytes verbatim")
		}
		assert.Error(t, s.Put(ctx, aliceCustomers, "bad", []byte(`{not json`)))
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		docs, err := s.GetAll(ctx, bobCustomers)
		require.NoError(t, err)
		assert.Empty(t, docs)

		got, err := s.Get(ctx, store.Namespace{Scope: scope.Global(), Collection: "customers"}, "CUST-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, s.Put(ctx, bobCustomers, "CUST-1", []byte(`{"id":"CUST-1","name":"Bob's"}`)))
		got, err = s.Get(ctx, aliceCustomers, "CUST-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"CUST-1","name":"Acme Ltd"}`, string(got))
	})

	t.Run("GetAll returns all", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, aliceCustomers, "CUST-2", []byte(`{"id":"CUST-2"}`)))
		docs, err := s.GetAll(ctx, aliceCustomers)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("Delete existing", func(t *testing.T) {
		existed, err := s.Delete(ctx, aliceCustomers, "CUST-2")
		require.NoError(t, err)
		assert.True(t, existed)
		got, err := s.Get(ctx, aliceCustomers, "CUST-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Delete missing", func(t *testing.T) {
		existed, err := s.Delete(ctx, aliceCustomers, "nope")
		require.NoError(t, err)
		assert.False(t, existed)

		existed, err = s.Delete(ctx, store.Namespace{Scope: scope.User("nobody"), Collection: "invoices"}, "nope")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("ListCollections", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, globalMasters, "MST-1", []byte(`{"id":"MST-1","type":"category","value":"Furniture"}`)))

		names, err := s.ListCollections(ctx, scope.User("alice"))
		require.NoError(t, err)
		assert.Equal(t, []string{"customers"}, names)

		names, err = s.ListCollections(ctx, scope.Global())
		require.NoError(t, err)
		assert.Equal(t, []string{"masters"}, names)

		names, err = s.ListCollections(ctx, scope.User("carol"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("GetSchema missing", func(t *testing.T) {
		sch, err := s.GetSchema(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, sch)
	})

	t.Run("PutSchema and GetSchema", func(t *testing.T) {
		schema := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
			"required": []any{"name"},
		}
		require.NoError(t, s.PutSchema(ctx, "vendors", schema))
		got, err := s.GetSchema(ctx, "vendors")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "object", got["type"])
	})

	t.Run("ListSchemas", func(t *testing.T) {
		schemas, err := s.ListSchemas(ctx)
		require.NoError(t, err)
		assert.Contains(t, schemas, "vendors")
	})

	t.Run("DeleteSchema", func(t *testing.T) {
		existed, err := s.DeleteSchema(ctx, "vendors")
		require.NoError(t, err)
		assert.True(t, existed)
		got, err := s.GetSchema(ctx, "vendors")
		require.NoError(t, err)
		assert.Nil(t, got)

		existed, err = s.DeleteSchema(ctx, "vendors")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.GetAll(cctx, aliceCustomers)
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, store.NewMemoryStore())
}

func TestJsonFileStore(t *testing.T) {
	s, err := store.NewJsonFileStore(t.TempDir())
	require.NoError(t, err)
	runStoreTests(t, s)
}

func TestSqliteStore(t *testing.T) {
	s, err := store.NewSqliteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	runStoreTests(t, s)
}

func TestSqliteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := store.NewSqliteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, aliceCustomers, "CUST-1", []byte(`{"id":"CUST-1"}`)))
	require.NoError(t, s.Close())

	// migrations are idempotent and data survives the reopen
	s, err = store.NewSqliteStore(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, aliceCustomers, "CUST-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"CUST-1"}`, string(got))
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	for _, backend := range append(store.Backends, "") {
		t.Run(backend, func(t *testing.T) {
			s, err := store.New(backend, filepath.Join(dir, backend))
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := store.New("redis", dir)
		assert.Error(t, err)
	})
}

func TestJsonFileStore_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.NewJsonFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, aliceCustomers, "k1", []byte(`{"x":1}`)))
	require.NoError(t, s.Put(ctx, globalMasters, "k1", []byte(`{"x":2}`)))

	_, err = os.Stat(filepath.Join(dir, "users", "616c696365", "customers.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "global", "masters.json"))
	assert.NoError(t, err)
}

func TestJsonFileStore_CaseDistinctNamesUseDistinctFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.NewJsonFileStore(dir)
	require.NoError(t, err)

	upper := store.Namespace{Scope: scope.User("Alice"), Collection: "customers"}
	require.NoError(t, s.Put(ctx, upper, "CUST-1", []byte(`{"id":"CUST-1","name":"Upper"}`)))
	require.NoError(t, s.Put(ctx, aliceCustomers, "CUST-2", []byte(`{"id":"CUST-2","name":"Lower"}`)))

	camel := store.Namespace{Scope: scope.User("alice"), Collection: "Customers"}
	require.NoError(t, s.Put(ctx, camel, "CUST-3", []byte(`{"id":"CUST-3"}`)))

	// no two of these paths may fold to the same name
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			paths = append(paths, strings.ToLower(path))
		}
		return err
	})
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.NotEqual(t, paths[0], paths[1])
	assert.NotEqual(t, paths[1], paths[2])
	assert.NotEqual(t, paths[0], paths[2])

	docs, err := s.GetAll(ctx, aliceCustomers)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Contains(t, docs, "CUST-2")

	names, err := s.ListCollections(ctx, scope.User("alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Customers", "customers"}, names)
}

func TestJsonFileStore_CorruptFileIsAnError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.NewJsonFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "global"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "global", "masters.json"), []byte("{oops"), 0o644))

	_, err = s.GetAll(ctx, globalMasters)
	assert.Error(t, err)
}

func TestJsonFileStore_RejectsPathLikeCollections(t *testing.T) {
	s, err := store.NewJsonFileStore(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), store.Namespace{Scope: scope.Global(), Collection: "../escape"}, "k", []byte(`{}`))
	assert.Error(t, err)
}
