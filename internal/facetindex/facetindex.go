// Package facetindex provides a SQLite mirror of the facet library with
// optional FTS5 full-text search, used for listing and searching facets
// without deserializing the library blob per query.
package facetindex

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS facets (
	facet_id    TEXT PRIMARY KEY,
	article_id  TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	honed_count INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_facets_article ON facets(article_id);
CREATE INDEX IF NOT EXISTS idx_facets_updated ON facets(updated_at);
`

// Index defines the facet lookup operations. Consumers should depend on this
// interface rather than the concrete *DB type to facilitate testing with
// mocks.
type Index interface {
	Upsert(row Row) error
	Delete(facetID string) error
	Get(facetID string) (*Row, error)
	List(limit, offset int, sort string) ([]Row, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllIDs() (map[string]int64, error)
	Close() error
}

// Verify *DB satisfies Index at compile time.
var _ Index = (*DB)(nil)

// DB wraps a sql.DB with facet index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("facetindex: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("facetindex: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("facetindex: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("facetindex: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
