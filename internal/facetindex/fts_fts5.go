//go:build sqlite_fts5

package facetindex

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS facets_fts USING fts5(
			facet_id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, facetID, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM facets_fts WHERE facet_id = ?`, facetID)
	_, err := tx.Exec(`INSERT INTO facets_fts (facet_id, title, body) VALUES (?, ?, ?)`,
		facetID, title, body)
	if err != nil {
		return fmt.Errorf("facetindex: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, facetID string) {
	_, _ = tx.Exec(`DELETE FROM facets_fts WHERE facet_id = ?`, facetID)
}

// Search performs an FTS5 full-text search and returns matching facets with
// snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT facet_id,
		       title,
		       snippet(facets_fts, 2, '<b>', '</b>', '...', 64)
		FROM facets_fts
		WHERE facets_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("facetindex: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.FacetID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
