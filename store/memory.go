package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/stevemurr/bizstore/scope"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]map[string][]byte // scope -> collection -> id -> doc
	schemas map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]map[string][]byte),
		schemas: make(map[string]map[string]any),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// cloneSchema returns a deep copy of a schema by round-tripping through JSON.
func cloneSchema(src map[string]any) (map[string]any, error) {
	if src == nil {
		return nil, nil
	}
	b, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var dst map[string]any
	if err := json.Unmarshal(b, &dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func (m *MemoryStore) GetAll(ctx context.Context, ns Namespace) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.records[ns.Scope.String()][ns.Collection]
	result := make(map[string][]byte, len(coll))
	for k, v := range coll {
		result[k] = cloneBytes(v)
	}
	return result, nil
}

func (m *MemoryStore) Get(ctx context.Context, ns Namespace, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.records[ns.Scope.String()][ns.Collection][id]
	if !ok {
		return nil, nil
	}
	return cloneBytes(doc), nil
}

func (m *MemoryStore) Put(ctx context.Context, ns Namespace, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sc := ns.Scope.String()
	if _, ok := m.records[sc]; !ok {
		m.records[sc] = make(map[string]map[string][]byte)
	}
	if _, ok := m.records[sc][ns.Collection]; !ok {
		m.records[sc][ns.Collection] = make(map[string][]byte)
	}
	m.records[sc][ns.Collection][id] = cloneBytes(data)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, ns Namespace, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.records[ns.Scope.String()][ns.Collection]
	if !ok {
		return false, nil
	}
	if _, exists := coll[id]; !exists {
		return false, nil
	}
	delete(coll, id)
	return true, nil
}

func (m *MemoryStore) ListCollections(ctx context.Context, sc scope.Scope) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name, docs := range m.records[sc.String()] {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) GetSchema(ctx context.Context, collection string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[collection]
	if !ok {
		return nil, nil
	}
	return cloneSchema(s)
}

func (m *MemoryStore) PutSchema(ctx context.Context, collection string, schema map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := cloneSchema(schema)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[collection] = s
	return nil
}

func (m *MemoryStore) DeleteSchema(ctx context.Context, collection string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[collection]; !ok {
		return false, nil
	}
	delete(m.schemas, collection)
	return true, nil
}

func (m *MemoryStore) ListSchemas(ctx context.Context) (map[string]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]map[string]any, len(m.schemas))
	for k, v := range m.schemas {
		s, err := cloneSchema(v)
		if err != nil {
			return nil, err
		}
		result[k] = s
	}
	return result, nil
}

func (m *MemoryStore) Close() error { return nil }
