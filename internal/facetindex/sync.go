package facetindex

import (
	"log/slog"
	"strings"

	"github.com/inshell/hone/internal/library"
)

// facetIDSeparator joins an article id and a mint timestamp into a facet id.
const facetIDSeparator = "-facet-"

// ArticleIDOf recovers the owning article id from a facet id, or "" when the
// id does not follow the minting scheme.
func ArticleIDOf(facetID string) string {
	if i := strings.LastIndex(facetID, facetIDSeparator); i > 0 {
		return facetID[:i]
	}
	return ""
}

// Sync reconciles the index with the library state:
//   - new or newer library entries are upserted
//   - rows absent from the library are deleted
func Sync(db Index, state library.State, logger *slog.Logger) error {
	indexed, err := db.AllIDs()
	if err != nil {
		return err
	}

	for id, item := range state.FacetsByID {
		if ts, ok := indexed[id]; ok && ts == item.UpdatedAt {
			continue
		}
		row := Row{
			FacetID:    id,
			ArticleID:  ArticleIDOf(id),
			Title:      item.Title,
			Body:       item.BodyText,
			HonedCount: len(item.HonedFrom),
			UpdatedAt:  item.UpdatedAt,
		}
		if err := db.Upsert(row); err != nil {
			logger.Warn("sync: upsert failed", slog.String("facet", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("facet", id))
		}
	}

	// Remove rows for facets no longer in the library.
	for id := range indexed {
		if _, ok := state.FacetsByID[id]; !ok {
			if err := db.Delete(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("facet", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("facet", id))
			}
		}
	}

	return nil
}
