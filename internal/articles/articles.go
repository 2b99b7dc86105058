// Package articles persists the working copy of every article: a map of
// article id to its document tree and last save time, stored as one JSON
// blob.
package articles

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/inshell/hone/internal/apperr"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/kvstore"
)

// Key is the collection blob the article map is stored under.
const Key = "honeData"

// Entry is one stored article.
type Entry struct {
	Content   document.Tree `json:"content"`
	UpdatedAt int64         `json:"updatedAt"`
}

// Data is the whole persisted collection, keyed by article id.
type Data map[string]Entry

// Store persists the article map and normalizes trees on save.
type Store struct {
	kv     kvstore.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates an article store over the given provider.
func NewStore(kv kvstore.Provider, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Load reads the persisted article map, substituting an empty one for
// absent or malformed data.
func (s *Store) Load() Data {
	raw, err := s.kv.Get(Key)
	if err != nil {
		return Data{}
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Warn("articles: discarding malformed blob", slog.String("error", err.Error()))
		return Data{}
	}
	if data == nil {
		return Data{}
	}
	return data
}

func (s *Store) persist(data Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("articles: marshal: %w", err)
	}
	if err := s.kv.Set(Key, raw); err != nil {
		return fmt.Errorf("articles: persist: %w", err)
	}
	return nil
}

// Get returns one article's tree, or apperr.ErrNotFound.
func (s *Store) Get(articleID string) (document.Tree, error) {
	data := s.Load()
	entry, ok := data[articleID]
	if !ok {
		return document.Tree{}, apperr.ErrNotFound
	}
	return entry.Content, nil
}

// SaveResult reports what Save did to the entry.
type SaveResult struct {
	// Deleted is true when the tree had no text and the entry was removed.
	Deleted bool
	// Skipped is true when the tree had no text and no entry existed.
	Skipped bool
	Tree    document.Tree
}

// Save normalizes the tree through the document transform rules and
// persists it. A tree holding no text at all deletes the stored entry
// (or skips the save when none exists) — clearing an article is how it is
// removed.
func (s *Store) Save(articleID string, tree document.Tree) (SaveResult, error) {
	tr := document.Transformer{ArticleID: articleID, Now: s.now}
	normalized := tr.Normalize(tree)

	data := s.Load()
	if len(document.CollectText(normalized)) == 0 {
		if _, ok := data[articleID]; !ok {
			return SaveResult{Skipped: true, Tree: normalized}, nil
		}
		delete(data, articleID)
		if err := s.persist(data); err != nil {
			return SaveResult{}, err
		}
		return SaveResult{Deleted: true, Tree: normalized}, nil
	}

	data[articleID] = Entry{Content: normalized, UpdatedAt: s.now().UnixMilli()}
	if err := s.persist(data); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{Tree: normalized}, nil
}

// Delete removes an article. Missing entries return apperr.ErrNotFound.
func (s *Store) Delete(articleID string) error {
	data := s.Load()
	if _, ok := data[articleID]; !ok {
		return apperr.ErrNotFound
	}
	delete(data, articleID)
	return s.persist(data)
}

// Replace overwrites the whole collection, for import.
func (s *Store) Replace(data Data) error {
	if data == nil {
		data = Data{}
	}
	return s.persist(data)
}

// Trees returns every stored article tree keyed by article id.
func (s *Store) Trees() map[string]document.Tree {
	data := s.Load()
	out := make(map[string]document.Tree, len(data))
	for id, entry := range data {
		out[id] = entry.Content
	}
	return out
}
