package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inshell/hone/internal/apperr"
	"github.com/inshell/hone/internal/hone"
	"github.com/inshell/hone/internal/honeservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *honeservice.Service
	drafts *draftBuffer
}

// NewHandler creates a new Handler. draftDelay debounces draft saves; zero
// makes PUT /articles/{id}/draft persist immediately.
func NewHandler(svc *honeservice.Service, draftDelay time.Duration, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, drafts: newDraftBuffer(svc, draftDelay, logger)}
}

// Close flushes pending drafts and stops the debounce scheduler.
func (h *Handler) Close() {
	h.drafts.close()
}

// ListArticles handles GET /api/articles.
//
//	@Summary		List working articles
//	@Tags			articles
//	@Produce		json
//	@Success		200	{object}	ArticleListResponse
//	@Security		BearerAuth
//	@Router			/articles [get]
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListArticles(r.Context())
	if err != nil {
		slog.Error("list articles failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ArticleListResponse{Articles: items, Total: len(items)})
}

// GetArticle handles GET /api/articles/{id}.
//
//	@Summary		Get a single article with extracted facets
//	@Tags			articles
//	@Produce		json
//	@Param			id	path		string	true	"Article id"
//	@Success		200	{object}	ArticleDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id} [get]
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.svc.GetArticle(r.Context(), id)
	if err != nil {
		h.writeError(w, "get article", id, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// SaveArticle handles PUT /api/articles/{id}.
//
//	@Summary		Save an article's document tree
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Article id"
//	@Param			body	body		SaveArticleRequest	true	"Document tree"
//	@Success		200		{object}	ArticleDetail
//	@Success		204		"Article removed (tree had no text)"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id} [put]
func (h *Handler) SaveArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeSaveRequest(w, r)
	if !ok {
		return
	}

	h.drafts.cancel(id)
	detail, err := h.svc.SaveArticle(r.Context(), id, req.Content)
	if err != nil {
		h.writeError(w, "save article", id, err)
		return
	}
	if detail == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DraftArticle handles PUT /api/articles/{id}/draft.
//
//	@Summary		Buffer an article edit for debounced persistence
//	@Tags			articles
//	@Accept			json
//	@Param			id		path	string				true	"Article id"
//	@Param			body	body	SaveArticleRequest	true	"Document tree"
//	@Success		202		"Draft accepted"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id}/draft [put]
func (h *Handler) DraftArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeSaveRequest(w, r)
	if !ok {
		return
	}

	h.drafts.queue(id, req.Content)
	w.WriteHeader(http.StatusAccepted)
}

// DeleteArticle handles DELETE /api/articles/{id}.
//
//	@Summary		Delete an article's working copy
//	@Tags			articles
//	@Param			id		path	string	true	"Article id"
//	@Param			confirm	query	bool	true	"Must be true"
//	@Success		204		"Article deleted"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id} [delete]
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusBadRequest, errorBody("confirm=true is required"))
		return
	}
	id := chi.URLParam(r, "id")
	h.drafts.cancel(id)
	if err := h.svc.DeleteArticle(r.Context(), id); err != nil {
		h.writeError(w, "delete article", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishArticle handles POST /api/articles/{id}/publish.
//
//	@Summary		Publish a new immutable edition of the article
//	@Tags			editions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Article id"
//	@Param			body	body		PublishRequest	false	"Optional title override"
//	@Success		200		{object}	editions.PublishResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id}/publish [post]
func (h *Handler) PublishArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req PublishRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	h.drafts.flush(id)
	result, err := h.svc.Publish(r.Context(), id, req.Title)
	if err != nil {
		h.writeError(w, "publish article", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  result.Status,
		"edition": result.Edition,
	})
}

// ListEditions handles GET /api/articles/{id}/editions.
//
//	@Summary		List an article's published editions, newest first
//	@Tags			editions
//	@Produce		json
//	@Param			id	path		string	true	"Article id"
//	@Success		200	{object}	map[string]any
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id}/editions [get]
func (h *Handler) ListEditions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	eds, err := h.svc.Editions(r.Context(), id)
	if err != nil {
		h.writeError(w, "list editions", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"editions": eds})
}

// GetEdition handles GET /api/articles/{id}/editions/{version}.
//
//	@Summary		Get one published edition by version
//	@Tags			editions
//	@Produce		json
//	@Param			id		path		string	true	"Article id"
//	@Param			version	path		int		true	"Edition version"
//	@Success		200		{object}	editions.ArticleEdition
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id}/editions/{version} [get]
func (h *Handler) GetEdition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("version must be a positive integer"))
		return
	}
	e, err := h.svc.Edition(r.Context(), id, version)
	if err != nil {
		h.writeError(w, "get edition", id, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ListFacets handles GET /api/facets.
//
//	@Summary		List or search library facets
//	@Tags			facets
//	@Produce		json
//	@Param			q		query		string	false	"Search query"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, title)
//	@Success		200		{object}	FacetListResponse
//	@Security		BearerAuth
//	@Router			/facets [get]
func (h *Handler) ListFacets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	facets, total, err := h.svc.Facets(r.Context(), q.Get("q"), limit, offset, q.Get("sort"))
	if err != nil {
		slog.Error("list facets failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, FacetListResponse{Facets: facets, Total: total})
}

// GetFacet handles GET /api/facets/{id}.
//
//	@Summary		Get one library facet with provenance
//	@Tags			facets
//	@Produce		json
//	@Param			id	path		string	true	"Facet id"
//	@Success		200	{object}	FacetDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/facets/{id} [get]
func (h *Handler) GetFacet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.svc.Facet(r.Context(), id)
	if err != nil {
		h.writeError(w, "get facet", id, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateFacet handles PUT /api/facets/{id}.
//
//	@Summary		Refresh a facet's library snapshot from its live document
//	@Tags			facets
//	@Produce		json
//	@Param			id	path		string	true	"Facet id"
//	@Success		200	{object}	FacetDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/facets/{id} [put]
func (h *Handler) UpdateFacet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.svc.UpdateFacet(r.Context(), id)
	if err != nil {
		h.writeError(w, "update facet", id, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HoneCandidates handles POST /api/articles/{id}/hone/candidates.
//
//	@Summary		Rank library facets against one of the article's facets
//	@Tags			hone
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Article id"
//	@Param			body	body		HoneCandidatesRequest	true	"Target facet"
//	@Success		200		{object}	map[string]any
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id}/hone/candidates [post]
func (h *Handler) HoneCandidates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req HoneCandidatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FacetID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("facetId is required"))
		return
	}

	h.drafts.flush(id)
	candidates, err := h.svc.HoneCandidates(r.Context(), id, req.FacetID)
	if err != nil {
		h.writeError(w, "hone candidates", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// HoneApply handles POST /api/articles/{id}/hone.
//
//	@Summary		Splice a source facet's content into the article
//	@Tags			hone
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Article id"
//	@Param			body	body		HoneApplyRequest	true	"Hone parameters"
//	@Success		200		{object}	ArticleDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{id}/hone [post]
func (h *Handler) HoneApply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req HoneApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.TargetFacetID == "" || req.SourceFacetID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("targetFacetId and sourceFacetId are required"))
		return
	}

	h.drafts.flush(id)
	detail, err := h.svc.HoneApply(r.Context(), id, req.CursorBlock, req.TargetFacetID, req.SourceFacetID)
	if err != nil {
		h.writeError(w, "hone apply", id, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// PruneLibrary handles POST /api/library/prune.
//
//	@Summary		Remove library facets no longer present in any article
//	@Tags			facets
//	@Produce		json
//	@Success		200	{object}	PruneResponse
//	@Security		BearerAuth
//	@Router			/library/prune [post]
func (h *Handler) PruneLibrary(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.Prune(r.Context())
	if err != nil {
		slog.Error("prune failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, PruneResponse{Removed: removed})
}

// Export handles GET /api/export.
//
//	@Summary		Download all collections as one backup payload
//	@Tags			backup
//	@Produce		json
//	@Success		200	{object}	export.ExportV1
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	payload, err := h.svc.Export(r.Context())
	if err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="hone-export.json"`)
	writeJSON(w, http.StatusOK, payload)
}

// Import handles POST /api/import.
//
//	@Summary		Overwrite all collections from a backup payload
//	@Tags			backup
//	@Accept			json
//	@Param			confirm	query	bool	true	"Must be true"
//	@Success		204		"Imported"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeJSON(w, http.StatusBadRequest, errorBody("confirm=true is required"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	if err := h.svc.Import(r.Context(), raw); err != nil {
		slog.Error("import failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	case errors.Is(err, hone.ErrEmptyLibrary),
		errors.Is(err, hone.ErrNoCandidates),
		errors.Is(err, hone.ErrNoFacetAtCursor):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeSaveRequest(w http.ResponseWriter, r *http.Request) (SaveArticleRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SaveArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	return req, true
}
