package facetindex

import (
	"database/sql"
	"errors"
	"fmt"
)

// Row represents a row in the facets table.
type Row struct {
	FacetID    string
	ArticleID  string
	Title      string
	Body       string
	HonedCount int
	UpdatedAt  int64
}

// SearchResult represents one search hit.
type SearchResult struct {
	FacetID string
	Title   string
	Snippet string
}

// Upsert inserts or replaces a facet row and its FTS entry within a
// transaction.
func (db *DB) Upsert(row Row) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("facetindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO facets (facet_id, article_id, title, body, honed_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(facet_id) DO UPDATE SET
			article_id  = excluded.article_id,
			title       = excluded.title,
			body        = excluded.body,
			honed_count = excluded.honed_count,
			updated_at  = excluded.updated_at
	`, row.FacetID, row.ArticleID, row.Title, row.Body, row.HonedCount, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("facetindex: upsert facet: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, row.FacetID, row.Title, row.Body); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a facet row and its FTS entry.
func (db *DB) Delete(facetID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("facetindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, facetID)
	_, _ = tx.Exec(`DELETE FROM facets WHERE facet_id = ?`, facetID)

	return tx.Commit()
}

// Get returns one facet row, or nil when not indexed.
func (db *DB) Get(facetID string) (*Row, error) {
	var row Row
	err := db.conn.QueryRow(`
		SELECT facet_id, article_id, title, body, honed_count, updated_at
		FROM facets WHERE facet_id = ?
	`, facetID).Scan(&row.FacetID, &row.ArticleID, &row.Title, &row.Body, &row.HonedCount, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("facetindex: get facet: %w", err)
	}
	return &row, nil
}

// List returns a page of facet rows plus the total count. Sort accepts
// "updated" (default, newest first) and "title".
func (db *DB) List(limit, offset int, sort string) ([]Row, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	order := "updated_at DESC, facet_id ASC"
	if sort == "title" {
		order = "title COLLATE NOCASE ASC, facet_id ASC"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM facets`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("facetindex: count: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT facet_id, article_id, title, body, honed_count, updated_at
		FROM facets
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("facetindex: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.FacetID, &r.ArticleID, &r.Title, &r.Body, &r.HonedCount, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllIDs returns every indexed facet id with its stored update time, the
// working set for reconciliation.
func (db *DB) AllIDs() (map[string]int64, error) {
	rows, err := db.conn.Query(`SELECT facet_id, updated_at FROM facets`)
	if err != nil {
		return nil, fmt.Errorf("facetindex: all ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var ts int64
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, err
		}
		out[id] = ts
	}
	return out, rows.Err()
}
