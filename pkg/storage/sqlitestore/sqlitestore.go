// Package sqlitestore persists collections in a single SQLite database.
//
// Tables:
//
//	collections(name)                   PRIMARY KEY (name)
//	documents(collection, id, data)     PRIMARY KEY (collection, id)
//	indexes(collection, specs)          PRIMARY KEY (collection)
//
// Documents are stored as JSON text. An upsert keeps the row's rowid, so
// loading ORDER BY rowid returns documents in first-write order.
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adfharrison1/go-docquery/pkg/domain"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// FileName is the database file created inside a data directory.
const FileName = "docquery.db"

// Provider hands out one Backend per collection over a shared database.
type Provider struct {
	mu sync.Mutex
	db *sql.DB
}

var _ domain.BackendProvider = (*Provider)(nil)
var _ domain.CollectionDropper = (*Provider)(nil)
var _ domain.IndexCatalog = (*Backend)(nil)

// Open opens or creates the database at dbPath.
func Open(dbPath string) (*Provider, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; also keeps a ":memory:" database on one connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE TABLE IF NOT EXISTS indexes (
			collection TEXT PRIMARY KEY,
			specs TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialise sqlite schema: %w", err)
		}
	}
	return &Provider{db: db}, nil
}

func (p *Provider) Backend(collection string) (domain.StorageBackend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.db.Exec("INSERT OR IGNORE INTO collections (name) VALUES (?)", collection); err != nil {
		return nil, fmt.Errorf("failed to register collection %s: %w", collection, err)
	}
	return &Backend{db: p.db, collection: collection}, nil
}

func (p *Provider) Collections() ([]string, error) {
	rows, err := p.db.Query("SELECT name FROM collections ORDER BY name")
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

// Drop deletes a collection's documents and registration in one transaction.
func (p *Provider) Drop(collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM documents WHERE collection = ?", collection); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM indexes WHERE collection = ?", collection); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("DELETE FROM collections WHERE name = ?", collection); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (p *Provider) Close() error {
	return p.db.Close()
}

// Backend stores one collection's rows.
type Backend struct {
	db         *sql.DB
	collection string

	mu     sync.Mutex
	closed bool
}

func (b *Backend) checkOpen() error {
	if b.closed {
		return fmt.Errorf("sqlite backend for %s is closed", b.collection)
	}
	return nil
}

func (b *Backend) Load() ([]domain.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := b.db.Query("SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid", b.collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var doc domain.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (b *Backend) Persist(doc domain.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data`,
		b.collection, doc.ID(), string(data),
	)
	return err
}

func (b *Backend) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	_, err := b.db.Exec("DELETE FROM documents WHERE collection = ? AND id = ?", b.collection, id)
	return err
}

// LoadIndexes reads the collection's index definitions.
func (b *Backend) LoadIndexes() ([]domain.IndexSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return nil, err
	}
	var raw string
	err := b.db.QueryRow("SELECT specs FROM indexes WHERE collection = ?", b.collection).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var specs []domain.IndexSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, fmt.Errorf("failed to decode indexes of %s: %w", b.collection, err)
	}
	return specs, nil
}

// SaveIndexes replaces the collection's index definitions.
func (b *Backend) SaveIndexes(specs []domain.IndexSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return err
	}
	_, err = b.db.Exec(
		`INSERT INTO indexes (collection, specs) VALUES (?, ?)
		 ON CONFLICT(collection) DO UPDATE SET specs = excluded.specs`,
		b.collection, string(data),
	)
	return err
}

// Close detaches the backend; the database closes with the provider.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
