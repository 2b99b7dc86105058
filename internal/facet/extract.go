// Package facet projects document trees into discrete, addressable facets:
// an active facet title plus the body lines that follow it.
package facet

import (
	"sort"
	"strings"

	"github.com/inshell/hone/internal/document"
)

// Facet is the extraction-time projection of one titled sub-unit. It is
// derived on demand from a tree snapshot and never mutated in place.
type Facet struct {
	FacetID     string   `json:"facetId"`
	Title       string   `json:"title"`
	ArticleID   string   `json:"articleId"`
	Content     []string `json:"content"`
	HonedAmount int      `json:"honedAmount,omitempty"`
	HonedBy     []string `json:"honedBy,omitempty"`
}

// Snapshot is the title/body pair used for library upserts and similarity
// scoring.
type Snapshot struct {
	FacetID  string
	Title    string
	BodyText string
}

// Extract walks the tree's top-level blocks in order and groups them into
// facets. An active facet title opens a new facet; every following block
// contributes its non-empty plain text as one content line. Inactive facet
// titles never open a facet — their text is ordinary content of the open
// facet, or dropped when none is open, as is any content before the first
// facet. A tree with no facets yields an empty slice.
func Extract(tree document.Tree, articleID string) []Facet {
	facets := []Facet{}
	var current *Facet

	flush := func() {
		if current != nil {
			facets = append(facets, *current)
			current = nil
		}
	}

	for _, b := range tree.Blocks {
		if b.Kind == document.KindFacetTitle && b.Facet != nil && b.Facet.Active {
			flush()
			current = &Facet{
				FacetID:     b.Facet.FacetID,
				Title:       document.PlainText(b),
				ArticleID:   articleID,
				Content:     []string{},
				HonedAmount: b.Facet.HonedAmount,
				HonedBy:     b.Facet.HonedBy,
			}
			continue
		}

		if current == nil {
			continue
		}
		if text := strings.TrimSpace(document.PlainText(b)); text != "" {
			current.Content = append(current.Content, text)
		}
	}
	flush()

	return facets
}

// ExtractAll extracts facets from every article independently and
// concatenates the results, ordered by article id for determinism. Facet id
// uniqueness is guaranteed by construction: ids embed the article id.
func ExtractAll(trees map[string]document.Tree) []Facet {
	ids := make([]string, 0, len(trees))
	for id := range trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Facet
	for _, id := range ids {
		out = append(out, Extract(trees[id], id)...)
	}
	return out
}

// LiveIDs collects the facet id set of the given facets, the reference set
// for orphan pruning in the library.
func LiveIDs(facets []Facet) map[string]struct{} {
	out := make(map[string]struct{}, len(facets))
	for _, f := range facets {
		out[f.FacetID] = struct{}{}
	}
	return out
}

// Snap reduces a facet to the snapshot stored in the library: marker and
// whitespace trimmed off the title, body lines joined with newlines.
func Snap(f Facet) Snapshot {
	return Snapshot{
		FacetID:  f.FacetID,
		Title:    CleanTitle(f.Title),
		BodyText: strings.Join(f.Content, "\n"),
	}
}

// Doc renders a snapshot as the "title\nbody" document string the
// similarity engine scores.
func (s Snapshot) Doc() string {
	return s.Title + "\n" + s.BodyText
}

// CleanTitle strips the facet marker prefix and surrounding whitespace.
func CleanTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	trimmed = strings.TrimPrefix(trimmed, document.FacetMarker)
	return strings.TrimSpace(trimmed)
}
