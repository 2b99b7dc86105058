// Package editions implements the append-only, per-article edition store:
// every publish appends an immutable versioned snapshot, and republishing
// identical content is an idempotent no-op guarded by a content hash.
package editions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inshell/hone/internal/checksum"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/kvstore"
)

// Key is the collection blob the edition store is stored under.
const Key = "articleEditions"

// Version tags the persisted shape.
const Version = 1

// Publish statuses.
const (
	StatusPublished = "published"
	StatusDuplicate = "duplicate"
)

// untitled is the title fallback when neither the override nor the content
// yields one.
const untitled = "Untitled"

// ArticleEdition is one published, immutable snapshot of an article.
type ArticleEdition struct {
	EditionID   string        `json:"editionId"`
	ArticleID   string        `json:"articleId"`
	Version     int           `json:"version"`
	CreatedAt   int64         `json:"createdAt"`
	Title       string        `json:"title"`
	Content     document.Tree `json:"content"`
	ContentHash string        `json:"contentHash"`
}

// ArticleRecord is the per-article version chain. EditionsOrder is
// newest-first.
type ArticleRecord struct {
	HeadEditionID string                    `json:"headEditionId"`
	LatestVersion int                       `json:"latestVersion"`
	EditionsByID  map[string]ArticleEdition `json:"editionsById"`
	EditionsOrder []string                  `json:"editionsOrder"`
}

// State is the whole persisted editions collection.
type State struct {
	Version   int                      `json:"version"`
	UpdatedAt int64                    `json:"updatedAt"`
	Articles  map[string]ArticleRecord `json:"articles"`
}

// PublishInput names an article and the content to publish. Title overrides
// the one derived from the content's article-title block.
type PublishInput struct {
	ArticleID string
	Content   document.Tree
	Title     string
}

// PublishResult reports what Publish did. Edition is nil on duplicate.
type PublishResult struct {
	Status        string
	State         State
	Edition       *ArticleEdition
	LatestVersion int
}

// Summary is one row of the published-articles index.
type Summary struct {
	ArticleID     string `json:"articleId"`
	Title         string `json:"title"`
	LatestVersion int    `json:"latestVersion"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Store persists edition state as a single versioned JSON blob.
type Store struct {
	kv     kvstore.Provider
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates an edition store over the given provider.
func NewStore(kv kvstore.Provider, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock overrides the timestamp source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithIDSource overrides edition id minting, for tests.
func (s *Store) WithIDSource(newID func() string) *Store {
	s.newID = newID
	return s
}

// Empty returns a freshly initialized empty publish state.
func (s *Store) Empty() State {
	return State{
		Version:   Version,
		UpdatedAt: s.now().UnixMilli(),
		Articles:  map[string]ArticleRecord{},
	}
}

// Load reads the persisted state, silently substituting an empty one for
// absent, malformed, or version-mismatched data.
func (s *Store) Load() State {
	raw, err := s.kv.Get(Key)
	if err != nil {
		return s.Empty()
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("editions: discarding malformed blob", slog.String("error", err.Error()))
		return s.Empty()
	}
	if state.Version != Version || state.Articles == nil {
		s.logger.Warn("editions: discarding blob with unexpected shape", slog.Int("version", state.Version))
		return s.Empty()
	}
	return state
}

func (s *Store) persist(state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("editions: marshal: %w", err)
	}
	if err := s.kv.Set(Key, raw); err != nil {
		return fmt.Errorf("editions: persist: %w", err)
	}
	return nil
}

// Publish appends a new edition for the article unless the content hash
// matches the current head edition, in which case it reports a duplicate
// and leaves the input state untouched. Versions start at 1 and increase by
// exactly one per successful publish.
func (s *Store) Publish(state State, in PublishInput) (PublishResult, error) {
	record, hasRecord := state.Articles[in.ArticleID]
	latest := 0
	if hasRecord {
		latest = record.LatestVersion
	}

	contentHash := checksum.Content(in.Content)
	if hasRecord && record.HeadEditionID != "" {
		if head, ok := record.EditionsByID[record.HeadEditionID]; ok && head.ContentHash == contentHash {
			return PublishResult{Status: StatusDuplicate, State: state, LatestVersion: latest}, nil
		}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = document.Title(in.Content)
	}
	if title == "" {
		title = untitled
	}

	edition := ArticleEdition{
		EditionID:   s.newID(),
		ArticleID:   in.ArticleID,
		Version:     latest + 1,
		CreatedAt:   s.now().UnixMilli(),
		Title:       title,
		Content:     in.Content,
		ContentHash: contentHash,
	}

	nextRecord := ArticleRecord{
		HeadEditionID: edition.EditionID,
		LatestVersion: edition.Version,
		EditionsByID:  make(map[string]ArticleEdition, len(record.EditionsByID)+1),
		EditionsOrder: make([]string, 0, len(record.EditionsOrder)+1),
	}
	for id, e := range record.EditionsByID {
		nextRecord.EditionsByID[id] = e
	}
	nextRecord.EditionsByID[edition.EditionID] = edition
	nextRecord.EditionsOrder = append(nextRecord.EditionsOrder, edition.EditionID)
	nextRecord.EditionsOrder = append(nextRecord.EditionsOrder, record.EditionsOrder...)

	next := State{
		Version:   Version,
		UpdatedAt: s.now().UnixMilli(),
		Articles:  make(map[string]ArticleRecord, len(state.Articles)+1),
	}
	for id, r := range state.Articles {
		next.Articles[id] = r
	}
	next.Articles[in.ArticleID] = nextRecord

	if err := s.persist(next); err != nil {
		return PublishResult{}, err
	}
	return PublishResult{
		Status:        StatusPublished,
		State:         next,
		Edition:       &edition,
		LatestVersion: latest,
	}, nil
}

// Replace overwrites the persisted state wholesale, for import. The state's
// shape is normalized so a later Load does not discard it.
func (s *Store) Replace(state State) error {
	state.Version = Version
	if state.Articles == nil {
		state.Articles = map[string]ArticleRecord{}
	}
	return s.persist(state)
}

// Record returns the per-article chain, or nil when the article has never
// been published.
func Record(state State, articleID string) *ArticleRecord {
	if record, ok := state.Articles[articleID]; ok {
		return &record
	}
	return nil
}

// EditionByVersion scans the article's edition order for the given version.
// Returns nil when the article or version is not found.
func EditionByVersion(state State, articleID string, version int) *ArticleEdition {
	record, ok := state.Articles[articleID]
	if !ok {
		return nil
	}
	for _, id := range record.EditionsOrder {
		if e, ok := record.EditionsByID[id]; ok && e.Version == version {
			return &e
		}
	}
	return nil
}

// EditionsFor returns the article's editions newest-first, skipping any
// dangling order entries.
func EditionsFor(state State, articleID string) []ArticleEdition {
	record, ok := state.Articles[articleID]
	if !ok {
		return []ArticleEdition{}
	}
	out := make([]ArticleEdition, 0, len(record.EditionsOrder))
	for _, id := range record.EditionsOrder {
		if e, ok := record.EditionsByID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// PublishedIndex summarizes every published article from its head edition,
// sorted by update time descending.
func PublishedIndex(state State) []Summary {
	out := make([]Summary, 0, len(state.Articles))
	for articleID, record := range state.Articles {
		summary := Summary{
			ArticleID:     articleID,
			Title:         untitled,
			LatestVersion: record.LatestVersion,
			UpdatedAt:     state.UpdatedAt,
		}
		if head, ok := record.EditionsByID[record.HeadEditionID]; ok {
			summary.Title = head.Title
			summary.UpdatedAt = head.CreatedAt
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ArticleID < out[j].ArticleID
	})
	return out
}
