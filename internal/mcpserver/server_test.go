package mcpserver

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/inshell/hone/internal/articles"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/editions"
	"github.com/inshell/hone/internal/honeservice"
	"github.com/inshell/hone/internal/library"
	"github.com/inshell/hone/internal/sse"
	"github.com/inshell/hone/internal/testutil"
)

func testServer(t *testing.T) (*Server, *honeservice.Service) {
	t.Helper()
	logger := slog.Default()
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	_, store := testutil.TestDataDir(t)

	svc := honeservice.NewService(
		articles.NewStore(store, logger),
		library.NewStore(store, logger),
		editions.NewStore(store, logger),
		testutil.TestIndex(t),
		broker,
		logger,
	)
	return New(svc), svc
}

func seedArticle(t *testing.T, svc *honeservice.Service, articleID, title, facetID, facetTitle, body string) {
	t.Helper()
	tree := document.Tree{Blocks: []document.Block{
		document.NewArticleTitle(title),
		document.NewFacetTitle(facetID, "$"+facetTitle, true),
		document.NewParagraph(body),
	}}
	if _, err := svc.SaveArticle(context.Background(), articleID, tree); err != nil {
		t.Fatal(err)
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call the
	// handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_articles":
		result, err = srv.listArticles(ctx, req)
	case "read_article":
		result, err = srv.readArticle(ctx, req)
	case "publish_edition":
		result, err = srv.publishEdition(ctx, req)
	case "list_facets":
		result, err = srv.listFacets(ctx, req)
	case "hone_candidates":
		result, err = srv.honeCandidates(ctx, req)
	case "get_facet_provenance":
		result, err = srv.getFacetProvenance(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListAndReadArticle(t *testing.T) {
	srv, svc := testServer(t)
	seedArticle(t, svc, "a1", "Test Article", "a1-facet-1", "Topic", "body text")

	r := callTool(t, srv, "list_articles", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, "Test Article") {
		t.Errorf("list result = %q", text)
	}

	r = callTool(t, srv, "read_article", map[string]interface{}{"articleId": "a1"})
	text := resultText(r)
	if !strings.Contains(text, "Test Article") || !strings.Contains(text, "a1-facet-1") {
		t.Errorf("read result = %q", text)
	}
}

func TestReadArticleMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_article", map[string]interface{}{"articleId": "nope"})
	if !r.IsError {
		t.Error("expected error for missing article")
	}
}

func TestPublishEdition(t *testing.T) {
	srv, svc := testServer(t)
	seedArticle(t, svc, "a1", "Test Article", "a1-facet-1", "Topic", "body text")

	r := callTool(t, srv, "publish_edition", map[string]interface{}{"articleId": "a1"})
	if text := resultText(r); text != "published: a1 version 1" {
		t.Errorf("publish result = %q", text)
	}

	// Unchanged content: duplicate, no new version.
	r = callTool(t, srv, "publish_edition", map[string]interface{}{"articleId": "a1"})
	if text := resultText(r); !strings.Contains(text, "duplicate") {
		t.Errorf("republish result = %q", text)
	}
}

func TestListFacets(t *testing.T) {
	srv, svc := testServer(t)
	seedArticle(t, svc, "a1", "Alpha", "a1-facet-1", "Gardening", "tomato plants")

	r := callTool(t, srv, "list_facets", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, "Gardening") {
		t.Errorf("list result = %q", text)
	}

	r = callTool(t, srv, "list_facets", map[string]interface{}{"query": "tomato"})
	if text := resultText(r); !strings.Contains(text, "a1-facet-1") {
		t.Errorf("search result = %q", text)
	}
}

func TestHoneCandidatesAndProvenance(t *testing.T) {
	srv, svc := testServer(t)
	seedArticle(t, svc, "alpha", "Alpha", "alpha-facet-1", "Cochlear implants",
		"pediatric cochlear implant outcomes")
	seedArticle(t, svc, "beta", "Beta", "beta-facet-1", "Pediatric audiology",
		"cochlear implant candidacy in pediatric patients")

	r := callTool(t, srv, "hone_candidates", map[string]interface{}{
		"articleId": "beta",
		"facetId":   "beta-facet-1",
	})
	if text := resultText(r); !strings.Contains(text, "alpha-facet-1") {
		t.Errorf("candidates = %q", text)
	}

	// No hone applied yet: provenance is empty.
	r = callTool(t, srv, "get_facet_provenance", map[string]interface{}{"facetId": "beta-facet-1"})
	if text := resultText(r); text != "no provenance recorded" {
		t.Errorf("provenance = %q", text)
	}

	if _, err := svc.HoneApply(context.Background(), "beta", 2, "beta-facet-1", "alpha-facet-1"); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "get_facet_provenance", map[string]interface{}{"facetId": "beta-facet-1"})
	if text := resultText(r); !strings.Contains(text, "alpha-facet-1") {
		t.Errorf("provenance after hone = %q", text)
	}
}
