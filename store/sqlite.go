package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pressly/goose/v3"

	"github.com/stevemurr/bizstore/scope"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// SqliteStore stores all scopes and collections in a single SQLite database.
//
// Tables:
//
//	records(scope, collection, id, data)  PRIMARY KEY (scope, collection, id)
//	schemas(collection, schema)           PRIMARY KEY (collection)
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (or creates) the database at dbPath and applies
// pending migrations. ":memory:" gives a private in-memory database.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and each ":memory:" connection is its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) GetAll(ctx context.Context, ns Namespace) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM records WHERE scope = ? AND collection = ?",
		ns.Scope.String(), ns.Collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()
	result := make(map[string][]byte)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		result[id] = []byte(raw)
	}
	return result, rows.Err()
}

func (s *SqliteStore) Get(ctx context.Context, ns Namespace, id string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM records WHERE scope = ? AND collection = ? AND id = ?",
		ns.Scope.String(), ns.Collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func (s *SqliteStore) Put(ctx context.Context, ns Namespace, id string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("document %q is not valid JSON", id)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (scope, collection, id, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, collection, id) DO UPDATE SET data = excluded.data`,
		ns.Scope.String(), ns.Collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (s *SqliteStore) Delete(ctx context.Context, ns Namespace, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE scope = ? AND collection = ? AND id = ?",
		ns.Scope.String(), ns.Collection, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SqliteStore) ListCollections(ctx context.Context, sc scope.Scope) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT collection FROM records WHERE scope = ? ORDER BY collection",
		sc.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SqliteStore) GetSchema(ctx context.Context, collection string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT schema FROM schemas WHERE collection = ?", collection).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, fmt.Errorf("corrupt schema for %q: %w", collection, err)
	}
	return schema, nil
}

func (s *SqliteStore) PutSchema(ctx context.Context, collection string, schema map[string]any) error {
	b, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schemas (collection, schema) VALUES (?, ?)
		 ON CONFLICT(collection) DO UPDATE SET schema = excluded.schema`,
		collection, string(b),
	)
	return err
}

func (s *SqliteStore) DeleteSchema(ctx context.Context, collection string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM schemas WHERE collection = ?", collection)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SqliteStore) ListSchemas(ctx context.Context) (map[string]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT collection, schema FROM schemas")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]map[string]any)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var schema map[string]any
		if err := json.Unmarshal([]byte(raw), &schema); err != nil {
			return nil, fmt.Errorf("corrupt schema for %q: %w", name, err)
		}
		result[name] = schema
	}
	return result, rows.Err()
}
