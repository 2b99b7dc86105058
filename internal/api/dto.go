package api

import (
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/honeservice"
)

// SaveArticleRequest is the request body for saving or drafting an article.
type SaveArticleRequest struct {
	Content document.Tree `json:"content" validate:"required"`
}

// PublishRequest is the request body for publishing an edition.
type PublishRequest struct {
	Title string `json:"title,omitempty" example:"My Article"`
}

// HoneApplyRequest names the facets and cursor position of a hone.
type HoneApplyRequest struct {
	CursorBlock   int    `json:"cursorBlock" validate:"required"`
	TargetFacetID string `json:"targetFacetId" validate:"required"`
	SourceFacetID string `json:"sourceFacetId" validate:"required"`
}

// HoneCandidatesRequest names the target facet to rank against.
type HoneCandidatesRequest struct {
	FacetID string `json:"facetId" validate:"required"`
}

// ArticleDetail is the full article response type (aliased from the domain
// layer).
type ArticleDetail = honeservice.ArticleDetail

// ArticleListItem is a lightweight item in a list response (aliased from the
// domain layer).
type ArticleListItem = honeservice.ArticleListItem

// FacetDetail is the facet response type (aliased from the domain layer).
type FacetDetail = honeservice.FacetDetail

// ArticleListResponse wraps article listings.
type ArticleListResponse struct {
	Articles []ArticleListItem `json:"articles" validate:"required"`
	Total    int               `json:"total" example:"42" validate:"required"`
}

// FacetListResponse wraps paginated facet listings.
type FacetListResponse struct {
	Facets []FacetDetail `json:"facets" validate:"required"`
	Total  int           `json:"total" example:"7" validate:"required"`
}

// PruneResponse reports the orphaned facet ids removed by a prune.
type PruneResponse struct {
	Removed []string `json:"removed" validate:"required"`
}
