package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/inshell/hone/internal/articles"
	"github.com/inshell/hone/internal/editions"
	"github.com/inshell/hone/internal/facetindex"
	"github.com/inshell/hone/internal/honeservice"
	"github.com/inshell/hone/internal/kvstore"
	"github.com/inshell/hone/internal/library"
	"github.com/inshell/hone/internal/mcpserver"
	"github.com/inshell/hone/internal/sse"
)

// RunMCP serves the MCP tools over stdio against the same data directory
// the HTTP server uses. Logs go to stderr; stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := kvstore.NewFS(cfg.Data.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	libraryStore := library.NewStore(store, logger)

	db, err := facetindex.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := facetindex.Sync(db, libraryStore.Load(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := honeservice.NewService(
		articles.NewStore(store, logger),
		libraryStore,
		editions.NewStore(store, logger),
		db,
		broker,
		logger,
	)

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}
