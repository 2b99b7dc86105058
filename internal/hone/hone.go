// Package hone implements the honing workflow: ranking library facets
// against a target facet and splicing a chosen facet's content into the
// article, recording provenance.
package hone

import (
	"errors"
	"strings"
	"time"

	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/facet"
	"github.com/inshell/hone/internal/library"
	"github.com/inshell/hone/internal/similarity"
)

// Workflow sentinels. All three abort the flow without mutating anything
// beyond the target's own library snapshot.
var (
	ErrEmptyLibrary    = errors.New("hone: facet library is empty")
	ErrNoCandidates    = errors.New("hone: no other facets to hone from")
	ErrNoFacetAtCursor = errors.New("hone: cursor is not inside an active facet")
)

// insertDelimiter brackets the spliced content on both sides.
const insertDelimiter = "---"

// Candidate is one ranked hone source.
type Candidate struct {
	FacetID string  `json:"facetId"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// Workflow runs the candidate ranking and apply steps against a library
// store.
type Workflow struct {
	lib *library.Store
	now func() time.Time
}

// NewWorkflow creates a workflow over the given library store.
func NewWorkflow(lib *library.Store) *Workflow {
	return &Workflow{lib: lib, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// Candidates ranks every library facet against the target, highest score
// first. The target itself is upserted into the library first so that it is
// current, then excluded from the candidate set. An empty library yields
// ErrEmptyLibrary; a library holding only the target yields ErrNoCandidates.
func (w *Workflow) Candidates(state library.State, target facet.Snapshot) ([]Candidate, library.State, error) {
	if len(state.FacetsByID) == 0 {
		return nil, state, ErrEmptyLibrary
	}

	state, err := w.lib.Upsert(state, library.UpsertInput{
		FacetID:  target.FacetID,
		Title:    target.Title,
		BodyText: target.BodyText,
	})
	if err != nil {
		return nil, state, err
	}

	docs := make(map[string]string, len(state.FacetsByID))
	titles := make(map[string]string, len(state.FacetsByID))
	for id, item := range state.FacetsByID {
		if id == target.FacetID {
			continue
		}
		docs[id] = item.Title + "\n" + item.BodyText
		titles[id] = item.Title
	}
	if len(docs) == 0 {
		return nil, state, ErrNoCandidates
	}

	ranked := similarity.Rank(target.Doc(), docs)
	out := make([]Candidate, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, Candidate{FacetID: r.ID, Title: titles[r.ID], Score: r.Score})
	}
	return out, state, nil
}

// Apply splices the source facet's library content into the tree directly
// after cursorBlock, bracketed by delimiter paragraphs and attributed with a
// "Honed from" line, then records the provenance edge on the target facet.
// The cursor must sit inside the target's active facet; otherwise nothing is
// mutated and ErrNoFacetAtCursor is returned.
func (w *Workflow) Apply(tree document.Tree, cursorBlock int, state library.State, targetFacetID, sourceFacetID string) (document.Tree, library.State, error) {
	nearest := document.NearestActiveFacet(tree, cursorBlock)
	if nearest == nil || nearest.FacetID != targetFacetID {
		return tree, state, ErrNoFacetAtCursor
	}
	source, ok := state.FacetsByID[sourceFacetID]
	if !ok {
		return tree, state, ErrNoCandidates
	}

	blocks := []document.Block{
		document.NewParagraph(insertDelimiter),
		document.NewParagraph("Honed from: " + source.Title),
	}
	for _, line := range splitLines(source.BodyText) {
		blocks = append(blocks, document.NewParagraph(line))
	}
	blocks = append(blocks, document.NewParagraph(insertDelimiter))

	next := document.InsertBlocks(tree, cursorBlock, blocks...)

	state, err := w.lib.AddHoneEdge(state, targetFacetID, sourceFacetID, w.now().UnixMilli())
	if err != nil {
		return tree, state, err
	}
	return next, state, nil
}

// splitLines splits body text on newlines, dropping empty lines so the
// spliced paragraphs mirror the facet's content lines.
func splitLines(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
