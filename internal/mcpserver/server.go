// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Hone tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/inshell/hone/internal/honeservice"
)

// Server wraps the MCP server with Hone tools.
type Server struct {
	mcp *server.MCPServer
	svc *honeservice.Service
}

// New creates a new MCP server with all Hone tools registered.
func New(svc *honeservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Hone",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_articles",
		mcp.WithDescription("List every working article with its title and facet count."),
	), s.listArticles)

	s.mcp.AddTool(mcp.NewTool("read_article",
		mcp.WithDescription("Read an article's document tree with its extracted facets. "+
			"The tree follows the block format described by the hone://document-format resource."),
		mcp.WithString("articleId", mcp.Required(), mcp.Description("Article id")),
	), s.readArticle)

	s.mcp.AddTool(mcp.NewTool("publish_edition",
		mcp.WithDescription("Publish a new immutable edition of an article's current working copy. "+
			"Republishing unchanged content reports a duplicate instead of minting a version."),
		mcp.WithString("articleId", mcp.Required(), mcp.Description("Article id")),
		mcp.WithString("title", mcp.Description("Optional title override for the edition")),
	), s.publishEdition)

	s.mcp.AddTool(mcp.NewTool("list_facets",
		mcp.WithDescription("List or search the facet library."),
		mcp.WithString("query", mcp.Description("Optional search query (empty lists everything)")),
	), s.listFacets)

	s.mcp.AddTool(mcp.NewTool("hone_candidates",
		mcp.WithDescription("Rank library facets by similarity to one of the article's facets, "+
			"highest score first. Use the result to choose a source facet for honing."),
		mcp.WithString("articleId", mcp.Required(), mcp.Description("Article id")),
		mcp.WithString("facetId", mcp.Required(), mcp.Description("Target facet id within the article")),
	), s.honeCandidates)

	s.mcp.AddTool(mcp.NewTool("get_facet_provenance",
		mcp.WithDescription("Show which facets a facet has been honed from, newest first."),
		mcp.WithString("facetId", mcp.Required(), mcp.Description("Facet id")),
	), s.getFacetProvenance)

	// Resource: document block format.
	s.mcp.AddResource(
		mcp.NewResource("hone://document-format", "Document Format Contract",
			mcp.WithResourceDescription("Canonical block-tree document format used by every article."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listArticles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListArticles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readArticle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	articleID, err := req.RequireString("articleId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.GetArticle(ctx, articleID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", articleID)), nil
	}
	out, _ := json.MarshalIndent(detail, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) publishEdition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	articleID, err := req.RequireString("articleId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := ""
	if v, err := req.RequireString("title"); err == nil {
		title = v
	}

	result, err := s.svc.Publish(ctx, articleID, title)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Edition == nil {
		return mcp.NewToolResultText(fmt.Sprintf("duplicate: content unchanged since version %d", result.LatestVersion)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("published: %s version %d", articleID, result.Edition.Version)), nil
}

func (s *Server) listFacets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := ""
	if q, err := req.RequireString("query"); err == nil {
		query = q
	}

	facets, _, err := s.svc.Facets(ctx, query, 50, 0, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(facets, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) honeCandidates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	articleID, err := req.RequireString("articleId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	facetID, err := req.RequireString("facetId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	candidates, err := s.svc.HoneCandidates(ctx, articleID, facetID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(candidates, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFacetProvenance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	facetID, err := req.RequireString("facetId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Facet(ctx, facetID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", facetID)), nil
	}
	if len(detail.HonedFrom) == 0 {
		return mcp.NewToolResultText("no provenance recorded"), nil
	}
	var lines []string
	for _, edge := range detail.HonedFrom {
		lines = append(lines, fmt.Sprintf("%s (honed at %d)", edge.FromFacetID, edge.HonedAt))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "hone://document-format",
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
