package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inshell/hone/internal/honeservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// draftDelay debounces PUT /articles/{id}/draft persistence.
func NewRouter(svc *honeservice.Service, authEnabled bool, token string, sseHandler http.Handler, draftDelay time.Duration, logger *slog.Logger) (chi.Router, *Handler) {
	h := NewHandler(svc, draftDelay, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Articles CRUD + drafting.
	r.Get("/articles", h.ListArticles)
	r.Get("/articles/{id}", h.GetArticle)
	r.Put("/articles/{id}", h.SaveArticle)
	r.Put("/articles/{id}/draft", h.DraftArticle)
	r.Delete("/articles/{id}", h.DeleteArticle)

	// Editions.
	r.Post("/articles/{id}/publish", h.PublishArticle)
	r.Get("/articles/{id}/editions", h.ListEditions)
	r.Get("/articles/{id}/editions/{version}", h.GetEdition)

	// Hone workflow.
	r.Post("/articles/{id}/hone/candidates", h.HoneCandidates)
	r.Post("/articles/{id}/hone", h.HoneApply)

	// Facet library.
	r.Get("/facets", h.ListFacets)
	r.Get("/facets/{id}", h.GetFacet)
	r.Put("/facets/{id}", h.UpdateFacet)
	r.Post("/library/prune", h.PruneLibrary)

	// Backup.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r, h
}
