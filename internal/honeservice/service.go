// Package honeservice coordinates the stores, the facet index, and the SSE
// broker behind one orchestration surface. Every mutation persists first and
// notifies after.
package honeservice

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/inshell/hone/internal/apperr"
	"github.com/inshell/hone/internal/articles"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/editions"
	"github.com/inshell/hone/internal/export"
	"github.com/inshell/hone/internal/facet"
	"github.com/inshell/hone/internal/facetindex"
	"github.com/inshell/hone/internal/hone"
	"github.com/inshell/hone/internal/library"
	"github.com/inshell/hone/internal/sse"
)

// ArticleDetail is the full representation of a working article.
type ArticleDetail struct {
	ArticleID string        `json:"articleId"`
	Title     string        `json:"title"`
	Content   document.Tree `json:"content"`
	UpdatedAt int64         `json:"updatedAt"`
	Facets    []facet.Facet `json:"facets"`
}

// ArticleListItem is a lightweight item in a list response.
type ArticleListItem struct {
	ArticleID  string `json:"articleId"`
	Title      string `json:"title"`
	UpdatedAt  int64  `json:"updatedAt"`
	FacetCount int    `json:"facetCount"`
}

// FacetDetail is a library facet enriched with provenance.
type FacetDetail struct {
	FacetID    string         `json:"facetId"`
	ArticleID  string         `json:"articleId"`
	Title      string         `json:"title"`
	BodyText   string         `json:"bodyText"`
	UpdatedAt  int64          `json:"updatedAt"`
	HonedFrom  []library.Edge `json:"honedFrom"`
	HonedCount int            `json:"honedCount"`
}

// Service coordinates article, library, and edition stores.
//
// Mutations take the service mutex: each one is a load-modify-persist cycle
// over shared JSON blobs, and interleaving two would lose writes.
type Service struct {
	mu sync.Mutex

	articles *articles.Store
	library  *library.Store
	editions *editions.Store
	index    facetindex.Index
	workflow *hone.Workflow
	broker   *sse.Broker
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new hone service.
func NewService(
	articleStore *articles.Store,
	libraryStore *library.Store,
	editionStore *editions.Store,
	index facetindex.Index,
	broker *sse.Broker,
	logger *slog.Logger,
) *Service {
	return &Service{
		articles: articleStore,
		library:  libraryStore,
		editions: editionStore,
		index:    index,
		workflow: hone.NewWorkflow(libraryStore),
		broker:   broker,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.workflow.WithClock(now)
	return s
}

// GetArticle returns the working copy of an article with its extracted
// facets.
func (s *Service) GetArticle(_ context.Context, articleID string) (*ArticleDetail, error) {
	data := s.articles.Load()
	entry, ok := data[articleID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return buildDetail(articleID, entry), nil
}

// ListArticles returns every working article, sorted by update time
// descending.
func (s *Service) ListArticles(_ context.Context) ([]ArticleListItem, error) {
	data := s.articles.Load()
	items := make([]ArticleListItem, 0, len(data))
	for id, entry := range data {
		title := document.Title(entry.Content)
		items = append(items, ArticleListItem{
			ArticleID:  id,
			Title:      title,
			UpdatedAt:  entry.UpdatedAt,
			FacetCount: len(facet.Extract(entry.Content, id)),
		})
	}
	sortListItems(items)
	return items, nil
}

// SaveArticle persists the article tree, refreshes the facet library and
// index from it, and notifies subscribers. Saving a tree with no text
// deletes the article; the returned detail is nil in that case.
func (s *Service) SaveArticle(_ context.Context, articleID string, tree document.Tree) (*ArticleDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.articles.Save(articleID, tree)
	if err != nil {
		return nil, err
	}
	if result.Skipped {
		return nil, nil
	}
	if result.Deleted {
		s.broker.PublishArticleEvent("deleted", articleID)
		return nil, nil
	}

	if err := s.refreshLibrary(articleID, result.Tree); err != nil {
		return nil, err
	}
	s.broker.PublishArticleEvent("updated", articleID)

	entry := articles.Entry{Content: result.Tree, UpdatedAt: s.now().UnixMilli()}
	return buildDetail(articleID, entry), nil
}

// DeleteArticle removes the working copy. Library entries for its facets
// stay until an explicit prune; published editions are never touched.
func (s *Service) DeleteArticle(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.articles.Delete(articleID); err != nil {
		return err
	}
	s.broker.PublishArticleEvent("deleted", articleID)
	return nil
}

// Publish appends a new edition of the article's current working copy.
func (s *Service) Publish(_ context.Context, articleID, titleOverride string) (*editions.PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.articles.Get(articleID)
	if err != nil {
		return nil, err
	}

	state := s.editions.Load()
	result, err := s.editions.Publish(state, editions.PublishInput{
		ArticleID: articleID,
		Content:   tree,
		Title:     titleOverride,
	})
	if err != nil {
		return nil, err
	}
	if result.Status == editions.StatusPublished {
		s.broker.PublishEditionsEvent(articleID, result.Edition.Version)
	}
	return &result, nil
}

// Editions returns the article's edition history, newest first.
func (s *Service) Editions(_ context.Context, articleID string) ([]editions.ArticleEdition, error) {
	state := s.editions.Load()
	if editions.Record(state, articleID) == nil {
		return nil, apperr.ErrNotFound
	}
	return editions.EditionsFor(state, articleID), nil
}

// Edition returns one specific published version.
func (s *Service) Edition(_ context.Context, articleID string, version int) (*editions.ArticleEdition, error) {
	e := editions.EditionByVersion(s.editions.Load(), articleID, version)
	if e == nil {
		return nil, apperr.ErrNotFound
	}
	return e, nil
}

// PublishedIndex summarizes every published article.
func (s *Service) PublishedIndex(_ context.Context) ([]editions.Summary, error) {
	return editions.PublishedIndex(s.editions.Load()), nil
}

// Facets lists library facets. A non-empty query searches the index;
// otherwise the index is paged directly.
func (s *Service) Facets(_ context.Context, query string, limit, offset int, sort string) ([]FacetDetail, int, error) {
	state := s.library.Load()

	if query != "" {
		hits, err := s.index.Search(query, limit)
		if err != nil {
			return nil, 0, err
		}
		out := make([]FacetDetail, 0, len(hits))
		for _, hit := range hits {
			if item, ok := state.FacetsByID[hit.FacetID]; ok {
				out = append(out, toFacetDetail(item))
			}
		}
		return out, len(out), nil
	}

	rows, total, err := s.index.List(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	out := make([]FacetDetail, 0, len(rows))
	for _, row := range rows {
		if item, ok := state.FacetsByID[row.FacetID]; ok {
			out = append(out, toFacetDetail(item))
		}
	}
	return out, total, nil
}

// Facet returns one library facet with provenance.
func (s *Service) Facet(_ context.Context, facetID string) (*FacetDetail, error) {
	state := s.library.Load()
	item, ok := state.FacetsByID[facetID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	detail := toFacetDetail(item)
	return &detail, nil
}

// UpdateFacet re-snapshots a facet from its article's live document and
// upserts the library entry.
func (s *Service) UpdateFacet(_ context.Context, facetID string) (*FacetDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	articleID := facetindex.ArticleIDOf(facetID)
	tree, err := s.articles.Get(articleID)
	if err != nil {
		return nil, err
	}

	var target *facet.Facet
	for _, f := range facet.Extract(tree, articleID) {
		if f.FacetID == facetID {
			target = &f
			break
		}
	}
	if target == nil {
		return nil, apperr.ErrNotFound
	}

	snap := facet.Snap(*target)
	state, err := s.library.Upsert(s.library.Load(), library.UpsertInput{
		FacetID:  snap.FacetID,
		Title:    snap.Title,
		BodyText: snap.BodyText,
	})
	if err != nil {
		return nil, err
	}
	s.syncIndex(state)
	s.broker.PublishLibraryEvent()

	detail := toFacetDetail(state.FacetsByID[facetID])
	return &detail, nil
}

// HoneCandidates ranks library facets against the article's facet.
func (s *Service) HoneCandidates(_ context.Context, articleID, facetID string) ([]hone.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.articles.Get(articleID)
	if err != nil {
		return nil, err
	}

	var target *facet.Facet
	for _, f := range facet.Extract(tree, articleID) {
		if f.FacetID == facetID {
			target = &f
			break
		}
	}
	if target == nil {
		return nil, apperr.ErrNotFound
	}

	candidates, state, err := s.workflow.Candidates(s.library.Load(), facet.Snap(*target))
	if err != nil {
		return nil, err
	}
	s.syncIndex(state)
	return candidates, nil
}

// HoneApply splices the source facet's content into the article after the
// cursor block and records provenance, then saves the modified article.
func (s *Service) HoneApply(_ context.Context, articleID string, cursorBlock int, targetFacetID, sourceFacetID string) (*ArticleDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.articles.Get(articleID)
	if err != nil {
		return nil, err
	}

	next, state, err := s.workflow.Apply(tree, cursorBlock, s.library.Load(), targetFacetID, sourceFacetID)
	if err != nil {
		return nil, err
	}

	result, err := s.articles.Save(articleID, next)
	if err != nil {
		return nil, err
	}
	if err := s.refreshLibraryWith(state, articleID, result.Tree); err != nil {
		return nil, err
	}
	s.broker.PublishArticleEvent("updated", articleID)

	entry := articles.Entry{Content: result.Tree, UpdatedAt: s.now().UnixMilli()}
	return buildDetail(articleID, entry), nil
}

// Prune removes library entries whose facet no longer exists in any working
// article. It reports the removed facet ids.
func (s *Service) Prune(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := facet.LiveIDs(facet.ExtractAll(s.articles.Trees()))
	state, removed, err := s.library.Prune(s.library.Load(), live)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.syncIndex(state)
		s.broker.PublishLibraryEvent()
	}
	return removed, nil
}

// Export assembles the full backup payload.
func (s *Service) Export(_ context.Context) (export.ExportV1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.Build(s.articles.Load(), s.library.Load(), s.editions.Load(), s.now()), nil
}

// Import overwrites all three collections from a backup payload. The caller
// confirms destructiveness; unrecognized input imports as empty.
func (s *Service) Import(_ context.Context, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := export.Normalize(raw)
	if err != nil {
		return err
	}

	if err := s.articles.Replace(payload.HoneData); err != nil {
		return err
	}
	if _, err := s.library.Save(payload.FacetsLibraryV2); err != nil {
		return err
	}
	if err := s.editions.Replace(payload.ArticleEditions); err != nil {
		return err
	}

	s.syncIndex(s.library.Load())
	s.broker.PublishLibraryEvent()
	return nil
}

// Resync reconciles the SQLite mirror with the library state on disk and
// tells connected clients to reload. Called when another process rewrites
// one of the collection blobs.
func (s *Service) Resync(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncIndex(s.library.Load())
	s.broker.PublishLibraryEvent()
}

// refreshLibrary upserts every facet of the article into the library and
// reconciles the index.
func (s *Service) refreshLibrary(articleID string, tree document.Tree) error {
	return s.refreshLibraryWith(s.library.Load(), articleID, tree)
}

func (s *Service) refreshLibraryWith(state library.State, articleID string, tree document.Tree) error {
	var err error
	for _, f := range facet.Extract(tree, articleID) {
		snap := facet.Snap(f)
		state, err = s.library.Upsert(state, library.UpsertInput{
			FacetID:  snap.FacetID,
			Title:    snap.Title,
			BodyText: snap.BodyText,
		})
		if err != nil {
			return err
		}
	}
	s.syncIndex(state)
	return nil
}

// syncIndex reconciles the SQLite mirror; index trouble is logged, never
// fatal to the mutation that triggered it.
func (s *Service) syncIndex(state library.State) {
	if err := facetindex.Sync(s.index, state, s.logger); err != nil {
		s.logger.Warn("service: index sync failed", slog.String("error", err.Error()))
	}
}

func buildDetail(articleID string, entry articles.Entry) *ArticleDetail {
	return &ArticleDetail{
		ArticleID: articleID,
		Title:     document.Title(entry.Content),
		Content:   entry.Content,
		UpdatedAt: entry.UpdatedAt,
		Facets:    facet.Extract(entry.Content, articleID),
	}
}

func toFacetDetail(item library.Item) FacetDetail {
	return FacetDetail{
		FacetID:    item.FacetID,
		ArticleID:  facetindex.ArticleIDOf(item.FacetID),
		Title:      item.Title,
		BodyText:   item.BodyText,
		UpdatedAt:  item.UpdatedAt,
		HonedFrom:  item.HonedFrom,
		HonedCount: len(item.HonedFrom),
	}
}

func sortListItems(items []ArticleListItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt != items[j].UpdatedAt {
			return items[i].UpdatedAt > items[j].UpdatedAt
		}
		return items[i].ArticleID < items[j].ArticleID
	})
}
