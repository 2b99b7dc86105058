// Package export builds and parses the single-file backup payload carrying
// all three persisted collections.
package export

import (
	"encoding/json"
	"time"

	"github.com/inshell/hone/internal/articles"
	"github.com/inshell/hone/internal/editions"
	"github.com/inshell/hone/internal/library"
)

// Version tags the wrapped export shape.
const Version = 1

// ExportV1 is the wrapped backup payload.
type ExportV1 struct {
	Version         int            `json:"version"`
	ExportedAt      int64          `json:"exportedAt"`
	HoneData        articles.Data  `json:"honeData"`
	FacetsLibraryV2 library.State  `json:"facetsLibraryV2"`
	ArticleEditions editions.State `json:"articleEditionsV1"`
}

// Build assembles a wrapped payload from the current collections.
func Build(data articles.Data, lib library.State, eds editions.State, now time.Time) ExportV1 {
	if data == nil {
		data = articles.Data{}
	}
	return ExportV1{
		Version:         Version,
		ExportedAt:      now.UnixMilli(),
		HoneData:        data,
		FacetsLibraryV2: lib,
		ArticleEditions: eds,
	}
}

// Normalized is the import-ready view of a parsed payload. Collections the
// payload did not carry are empty, never nil.
type Normalized struct {
	HoneData        articles.Data
	FacetsLibraryV2 library.State
	ArticleEditions editions.State
	// Legacy is true when the input was a bare article map rather than the
	// wrapped shape.
	Legacy bool
}

// Normalize parses raw import bytes. The wrapped ExportV1 shape is used as
// is; a bare legacy article map becomes a payload with empty library and
// editions. Anything else yields an all-empty payload rather than an error,
// matching the forgiving load behavior of the stores.
func Normalize(raw []byte) (Normalized, error) {
	var wrapped ExportV1
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Version == Version && wrapped.HoneData != nil {
		return Normalized{
			HoneData:        wrapped.HoneData,
			FacetsLibraryV2: sanitizeLibrary(wrapped.FacetsLibraryV2),
			ArticleEditions: sanitizeEditions(wrapped.ArticleEditions),
		}, nil
	}

	var legacy articles.Data
	if err := json.Unmarshal(raw, &legacy); err == nil && looksLikeArticleMap(legacy) {
		return Normalized{
			HoneData:        legacy,
			FacetsLibraryV2: emptyLibrary(),
			ArticleEditions: emptyEditions(),
			Legacy:          true,
		}, nil
	}

	return Normalized{
		HoneData:        articles.Data{},
		FacetsLibraryV2: emptyLibrary(),
		ArticleEditions: emptyEditions(),
	}, nil
}

// looksLikeArticleMap guards the legacy path: every entry must carry
// document content. An empty map is not treated as legacy data.
func looksLikeArticleMap(data articles.Data) bool {
	if len(data) == 0 {
		return false
	}
	for _, entry := range data {
		if len(entry.Content.Blocks) == 0 {
			return false
		}
	}
	return true
}

func sanitizeLibrary(state library.State) library.State {
	if state.Version != library.Version || state.FacetsByID == nil {
		return emptyLibrary()
	}
	return state
}

func sanitizeEditions(state editions.State) editions.State {
	if state.Version != editions.Version || state.Articles == nil {
		return emptyEditions()
	}
	return state
}

func emptyLibrary() library.State {
	return library.State{Version: library.Version, FacetsByID: map[string]library.Item{}}
}

func emptyEditions() editions.State {
	return editions.State{Version: editions.Version, Articles: map[string]editions.ArticleRecord{}}
}
