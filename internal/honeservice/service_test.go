package honeservice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/inshell/hone/internal/apperr"
	"github.com/inshell/hone/internal/articles"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/editions"
	"github.com/inshell/hone/internal/facetindex"
	"github.com/inshell/hone/internal/hone"
	"github.com/inshell/hone/internal/kvstore"
	"github.com/inshell/hone/internal/library"
	"github.com/inshell/hone/internal/sse"
)

// memIndex is an in-memory facetindex.Index for service tests.
type memIndex struct {
	rows map[string]facetindex.Row
}

func newMemIndex() *memIndex { return &memIndex{rows: map[string]facetindex.Row{}} }

func (m *memIndex) Upsert(row facetindex.Row) error {
	m.rows[row.FacetID] = row
	return nil
}

func (m *memIndex) Delete(facetID string) error {
	delete(m.rows, facetID)
	return nil
}

func (m *memIndex) Get(facetID string) (*facetindex.Row, error) {
	if row, ok := m.rows[facetID]; ok {
		return &row, nil
	}
	return nil, nil
}

func (m *memIndex) List(limit, offset int, _ string) ([]facetindex.Row, int, error) {
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []facetindex.Row
	for i, id := range ids {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.rows[id])
	}
	return out, len(m.rows), nil
}

func (m *memIndex) Search(query string, _ int) ([]facetindex.SearchResult, error) {
	var out []facetindex.SearchResult
	for id, row := range m.rows {
		if strings.Contains(row.Title, query) || strings.Contains(row.Body, query) {
			out = append(out, facetindex.SearchResult{FacetID: id, Title: row.Title})
		}
	}
	return out, nil
}

func (m *memIndex) AllIDs() (map[string]int64, error) {
	out := make(map[string]int64, len(m.rows))
	for id, row := range m.rows {
		out[id] = row.UpdatedAt
	}
	return out, nil
}

func (m *memIndex) Close() error { return nil }

var _ facetindex.Index = (*memIndex)(nil)

type fixture struct {
	svc   *Service
	index *memIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.Default()
	clock := func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	idx := newMemIndex()
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	svc := NewService(
		articles.NewStore(kvstore.NewMemory(), logger).WithClock(clock),
		library.NewStore(kvstore.NewMemory(), logger).WithClock(clock),
		editions.NewStore(kvstore.NewMemory(), logger).WithClock(clock),
		idx,
		broker,
		logger,
	).WithClock(clock)
	return &fixture{svc: svc, index: idx}
}

func facetedTree(title, facetID, facetTitle string, body ...string) document.Tree {
	blocks := []document.Block{
		document.NewArticleTitle(title),
		document.NewFacetTitle(facetID, "$"+facetTitle, true),
	}
	for _, line := range body {
		blocks = append(blocks, document.NewParagraph(line))
	}
	return document.Tree{Blocks: blocks}
}

func TestSaveArticle_RefreshesLibraryAndIndex(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	detail, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "Greetings", "hello world"))
	if err != nil {
		t.Fatal(err)
	}
	if detail == nil || detail.Title != "Alpha" || len(detail.Facets) != 1 {
		t.Fatalf("detail = %+v", detail)
	}

	fd, err := fx.svc.Facet(ctx, "a1-facet-1")
	if err != nil {
		t.Fatal(err)
	}
	if fd.Title != "Greetings" || fd.BodyText != "hello world" {
		t.Errorf("facet = %+v", fd)
	}

	if row, _ := fx.index.Get("a1-facet-1"); row == nil || row.ArticleID != "a1" {
		t.Errorf("index row = %+v", row)
	}
}

func TestSaveArticle_EmptyTreeDeletes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "F", "body")); err != nil {
		t.Fatal(err)
	}
	detail, err := fx.svc.SaveArticle(ctx, "a1", document.Tree{})
	if err != nil {
		t.Fatal(err)
	}
	if detail != nil {
		t.Errorf("detail = %+v, want nil on delete", detail)
	}
	if _, err := fx.svc.GetArticle(ctx, "a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListArticles_NewestFirst(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("One", "a1-facet-1", "F", "b")); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.SaveArticle(ctx, "a2", facetedTree("Two", "a2-facet-1", "F", "b")); err != nil {
		t.Fatal(err)
	}

	items, err := fx.svc.ListArticles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	// Equal timestamps under the fixed clock: ties break by article id.
	if items[0].ArticleID != "a1" || items[0].FacetCount != 1 {
		t.Errorf("items[0] = %+v", items[0])
	}
}

func TestPublishAndEditions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "F", "body")); err != nil {
		t.Fatal(err)
	}

	result, err := fx.svc.Publish(ctx, "a1", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != editions.StatusPublished || result.Edition.Version != 1 {
		t.Fatalf("result = %+v", result)
	}

	// Same content again: duplicate.
	dup, err := fx.svc.Publish(ctx, "a1", "")
	if err != nil {
		t.Fatal(err)
	}
	if dup.Status != editions.StatusDuplicate {
		t.Errorf("status = %s", dup.Status)
	}

	eds, err := fx.svc.Editions(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(eds) != 1 {
		t.Errorf("editions = %+v", eds)
	}

	one, err := fx.svc.Edition(ctx, "a1", 1)
	if err != nil || one.Title != "Alpha" {
		t.Errorf("edition = %+v, err = %v", one, err)
	}
	if _, err := fx.svc.Edition(ctx, "a1", 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPublish_UnknownArticle(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.svc.Publish(context.Background(), "ghost", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHoneFlow_EndToEnd(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Two articles, each with one facet on a related topic.
	if _, err := fx.svc.SaveArticle(ctx, "alpha", facetedTree("Alpha", "alpha-facet-1", "Cochlear implants",
		"pediatric cochlear implant outcomes", "mapping sessions after activation")); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.SaveArticle(ctx, "beta", facetedTree("Beta", "beta-facet-1", "Pediatric audiology",
		"cochlear implant candidacy in pediatric patients")); err != nil {
		t.Fatal(err)
	}

	candidates, err := fx.svc.HoneCandidates(ctx, "beta", "beta-facet-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].FacetID != "alpha-facet-1" {
		t.Fatalf("candidates = %+v", candidates)
	}

	// Cursor on the facet body paragraph (block 2).
	detail, err := fx.svc.HoneApply(ctx, "beta", 2, "beta-facet-1", "alpha-facet-1")
	if err != nil {
		t.Fatal(err)
	}

	var texts []string
	for _, b := range detail.Content.Blocks {
		texts = append(texts, document.PlainText(b))
	}
	joined := strings.Join(texts, "|")
	if !strings.Contains(joined, "Honed from: Cochlear implants") {
		t.Errorf("honed content missing attribution: %v", texts)
	}

	// Provenance edge recorded on the target.
	fd, err := fx.svc.Facet(ctx, "beta-facet-1")
	if err != nil {
		t.Fatal(err)
	}
	if fd.HonedCount != 1 || fd.HonedFrom[0].FromFacetID != "alpha-facet-1" {
		t.Errorf("facet = %+v", fd)
	}
}

func TestHoneCandidates_EmptyLibrary(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// Save an article but bypass the library by deleting its facet first: the
	// simplest route is an article without facets plus a manual target probe.
	if _, err := fx.svc.SaveArticle(ctx, "a1", document.Tree{Blocks: []document.Block{
		document.NewArticleTitle("Alpha"),
		document.NewParagraph("no facets here"),
	}}); err != nil {
		t.Fatal(err)
	}
	_, err := fx.svc.HoneCandidates(ctx, "a1", "a1-facet-1")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for absent facet", err)
	}
}

func TestHoneCandidates_OnlyOwnFacet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "Solo", "the only facet around")); err != nil {
		t.Fatal(err)
	}
	_, err := fx.svc.HoneCandidates(ctx, "a1", "a1-facet-1")
	if !errors.Is(err, hone.ErrNoCandidates) {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}
}

func TestUpdateFacet_ResnapshotsFromLiveDocument(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "F", "original body")); err != nil {
		t.Fatal(err)
	}

	// Edit the body and update just the facet.
	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "F", "revised body")); err != nil {
		t.Fatal(err)
	}
	fd, err := fx.svc.UpdateFacet(ctx, "a1-facet-1")
	if err != nil {
		t.Fatal(err)
	}
	if fd.BodyText != "revised body" {
		t.Errorf("bodyText = %q", fd.BodyText)
	}
}

func TestPrune_RemovesOrphans(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "Keep", "body")); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.SaveArticle(ctx, "a2", facetedTree("Beta", "a2-facet-1", "Orphan", "body")); err != nil {
		t.Fatal(err)
	}
	if err := fx.svc.DeleteArticle(ctx, "a2"); err != nil {
		t.Fatal(err)
	}

	// The library keeps the orphan until prune.
	if _, err := fx.svc.Facet(ctx, "a2-facet-1"); err != nil {
		t.Fatalf("orphan gone before prune: %v", err)
	}

	removed, err := fx.svc.Prune(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != "a2-facet-1" {
		t.Errorf("removed = %v", removed)
	}
	if _, err := fx.svc.Facet(ctx, "a2-facet-1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after prune", err)
	}
	if row, _ := fx.index.Get("a2-facet-1"); row != nil {
		t.Error("index row survived prune")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "F", "body")); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.Publish(ctx, "a1", ""); err != nil {
		t.Fatal(err)
	}

	payload, err := fx.svc.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	// Import into a fresh service.
	fresh := newFixture(t)
	if err := fresh.svc.Import(ctx, raw); err != nil {
		t.Fatal(err)
	}

	detail, err := fresh.svc.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if detail.Title != "Alpha" {
		t.Errorf("title = %q", detail.Title)
	}
	eds, err := fresh.svc.Editions(ctx, "a1")
	if err != nil || len(eds) != 1 {
		t.Errorf("editions = %+v, err = %v", eds, err)
	}
	if _, err := fresh.svc.Facet(ctx, "a1-facet-1"); err != nil {
		t.Errorf("library not imported: %v", err)
	}
}

func TestFacets_SearchAndList(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.SaveArticle(ctx, "a1", facetedTree("Alpha", "a1-facet-1", "Gardening", "tomato plants")); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.SaveArticle(ctx, "a2", facetedTree("Beta", "a2-facet-1", "Cooking", "pasta recipes")); err != nil {
		t.Fatal(err)
	}

	all, total, err := fx.svc.Facets(ctx, "", 10, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("list = %+v, total = %d", all, total)
	}

	hits, _, err := fx.svc.Facets(ctx, "tomato", 10, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].FacetID != "a1-facet-1" {
		t.Errorf("hits = %+v", hits)
	}
}
