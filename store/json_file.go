package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stevemurr/bizstore/scope"
)

// JsonFileStore stores each scope/collection pair as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  _schemas.json                   # schema registry
//	  global/masters.json             # shared "masters" collection
//	  users/616c696365/customers.json # "customers" of user "alice" (hex encoded id)
//	  users/616c696365/old!stock.json # "oldStock"; upper case is written as "!" + lower
//
// Writes go to a temporary file that is renamed over the target, so a crash
// never leaves a half-written collection behind.
type JsonFileStore struct {
	mu  sync.RWMutex
	dir string
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{dir: dir}, nil
}

func (s *JsonFileStore) scopeDir(sc scope.Scope) string {
	return filepath.Join(append([]string{s.dir}, sc.PathSegments()...)...)
}

func (s *JsonFileStore) collectionPath(ns Namespace) (string, error) {
	if ns.Collection == "" || strings.ContainsAny(ns.Collection, `/\!`) || strings.HasPrefix(ns.Collection, ".") {
		return "", fmt.Errorf("invalid collection name %q", ns.Collection)
	}
	return filepath.Join(s.scopeDir(ns.Scope), escapeCollection(ns.Collection)+".json"), nil
}

// escapeCollection writes each upper-case letter as "!" plus its lower-case
// form, the way the Go module cache does, so "Customers" and "customers" get
// different files on case-insensitive filesystems.
func escapeCollection(name string) string {
	var b strings.Builder
	for _, r := range name {
		if 'A' <= r && r <= 'Z' {
			b.WriteByte('!')
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescapeCollection(name string) string {
	var b strings.Builder
	upper := false
	for _, r := range name {
		switch {
		case r == '!':
			upper = true
			continue
		case upper && 'a' <= r && r <= 'z':
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

func (s *JsonFileStore) schemasPath() string {
	return filepath.Join(s.dir, "_schemas.json")
}

// loadFile reads a JSON object file. A missing file is an empty object;
// a file that does not parse is an error.
func loadFile[V any](path string) (map[string]V, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]V{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return map[string]V{}, nil
	}
	result := map[string]V{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("corrupt file %s: %w", path, err)
	}
	return result, nil
}

func (s *JsonFileStore) saveFile(path string, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *JsonFileStore) loadCollection(ns Namespace) (string, map[string]json.RawMessage, error) {
	path, err := s.collectionPath(ns)
	if err != nil {
		return "", nil, err
	}
	coll, err := loadFile[json.RawMessage](path)
	return path, coll, err
}

func (s *JsonFileStore) GetAll(ctx context.Context, ns Namespace) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, coll, err := s.loadCollection(ns)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(coll))
	for k, v := range coll {
		result[k] = v
	}
	return result, nil
}

func (s *JsonFileStore) Get(ctx context.Context, ns Namespace, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, coll, err := s.loadCollection(ns)
	if err != nil {
		return nil, err
	}
	doc, ok := coll[id]
	if !ok {
		return nil, nil
	}
	return doc, nil
}

func (s *JsonFileStore) Put(ctx context.Context, ns Namespace, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("document %q is not valid JSON", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path, coll, err := s.loadCollection(ns)
	if err != nil {
		return err
	}
	coll[id] = json.RawMessage(data)
	return s.saveFile(path, coll)
}

func (s *JsonFileStore) Delete(ctx context.Context, ns Namespace, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path, coll, err := s.loadCollection(ns)
	if err != nil {
		return false, err
	}
	if _, ok := coll[id]; !ok {
		return false, nil
	}
	delete(coll, id)
	return true, s.saveFile(path, coll)
}

func (s *JsonFileStore) ListCollections(ctx context.Context, sc scope.Scope) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir := s.scopeDir(sc)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		coll, err := loadFile[json.RawMessage](filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if len(coll) > 0 {
			names = append(names, unescapeCollection(strings.TrimSuffix(name, ".json")))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *JsonFileStore) GetSchema(ctx context.Context, collection string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	schemas, err := loadFile[map[string]any](s.schemasPath())
	if err != nil {
		return nil, err
	}
	sch, ok := schemas[collection]
	if !ok {
		return nil, nil
	}
	return sch, nil
}

func (s *JsonFileStore) PutSchema(ctx context.Context, collection string, schema map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.schemasPath()
	schemas, err := loadFile[map[string]any](path)
	if err != nil {
		return err
	}
	schemas[collection] = schema
	return s.saveFile(path, schemas)
}

func (s *JsonFileStore) DeleteSchema(ctx context.Context, collection string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.schemasPath()
	schemas, err := loadFile[map[string]any](path)
	if err != nil {
		return false, err
	}
	if _, ok := schemas[collection]; !ok {
		return false, nil
	}
	delete(schemas, collection)
	return true, s.saveFile(path, schemas)
}

func (s *JsonFileStore) ListSchemas(ctx context.Context) (map[string]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadFile[map[string]any](s.schemasPath())
}

func (s *JsonFileStore) Close() error { return nil }
