// Package document defines the block tree that article content is stored
// as, and the transform rules that keep it consistent while it is edited.
//
// A tree is an ordered sequence of top-level blocks. Every block carries its
// inline text as spans; a facet-title block additionally carries facet
// identity and provenance data that survives activation state changes.
package document

import (
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the closed set of block variants.
type Kind string

const (
	KindArticleTitle Kind = "article-title"
	KindFacetTitle   Kind = "facet-title"
	KindParagraph    Kind = "paragraph"
)

// FacetMarker is the leading character that activates a facet title.
const FacetMarker = "$"

// Span is a leaf run of inline text owned by exactly one block.
type Span struct {
	Text string `json:"text"`
}

// FacetData is the identity a facet-title block carries. FacetID is assigned
// once and survives activate/deactivate; HonedBy and HonedAmount are legacy
// fields kept for older persisted trees.
type FacetData struct {
	FacetID     string   `json:"facetId"`
	Active      bool     `json:"active"`
	HonedBy     []string `json:"honedBy,omitempty"`
	HonedAmount int      `json:"honedAmount,omitempty"`
}

// Block is one top-level node of the tree. Facet is non-nil only when Kind
// is KindFacetTitle.
type Block struct {
	Kind  Kind       `json:"type"`
	Facet *FacetData `json:"facet,omitempty"`
	Spans []Span     `json:"children"`
}

// Tree is the document: an ordered sequence of blocks under an implicit root.
type Tree struct {
	Blocks []Block `json:"blocks"`
}

// NewParagraph builds a paragraph block holding a single span of text.
func NewParagraph(text string) Block {
	return Block{Kind: KindParagraph, Spans: []Span{{Text: text}}}
}

// NewArticleTitle builds the heading block that must lead every tree.
func NewArticleTitle(text string) Block {
	return Block{Kind: KindArticleTitle, Spans: []Span{{Text: text}}}
}

// NewFacetTitle builds a facet-title block with the given identity.
func NewFacetTitle(facetID, text string, active bool) Block {
	return Block{
		Kind:  KindFacetTitle,
		Facet: &FacetData{FacetID: facetID, Active: active},
		Spans: []Span{{Text: text}},
	}
}

// PlainText joins the block's spans into one string.
func PlainText(b Block) string {
	switch len(b.Spans) {
	case 0:
		return ""
	case 1:
		return b.Spans[0].Text
	}
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// CollectText returns the trimmed text of every span in document order,
// skipping empty runs. An empty result means the document holds no text.
func CollectText(t Tree) []string {
	var out []string
	for _, b := range t.Blocks {
		for _, s := range b.Spans {
			if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// Title returns the trimmed text of the article-title block, or "" when the
// tree has none.
func Title(t Tree) string {
	for _, b := range t.Blocks {
		if b.Kind == KindArticleTitle {
			return strings.TrimSpace(PlainText(b))
		}
	}
	return ""
}

// NearestActiveFacet walks backwards from blockIndex and returns the closest
// preceding (or containing) active facet-title block, following the rule
// that body content belongs to the nearest active facet title above it.
// Returns nil when blockIndex is out of range or no facet owns the position.
func NearestActiveFacet(t Tree, blockIndex int) *FacetData {
	if blockIndex < 0 || blockIndex >= len(t.Blocks) {
		return nil
	}
	for i := blockIndex; i >= 0; i-- {
		b := t.Blocks[i]
		if b.Kind == KindFacetTitle && b.Facet != nil && b.Facet.Active {
			data := *b.Facet
			return &data
		}
	}
	return nil
}

// leadingText returns the text of the block's first span. Transitions are
// driven only by the leading span so that a marker typed mid-sentence does
// not reclassify the block.
func leadingText(b Block) string {
	if len(b.Spans) == 0 {
		return ""
	}
	return b.Spans[0].Text
}

// Transformer applies the per-block state machine after edits. ArticleID
// seeds minted facet ids; Now supplies the timestamp component and defaults
// to time.Now.
type Transformer struct {
	ArticleID string
	Now       func() time.Time
}

func (tr Transformer) now() time.Time {
	if tr.Now != nil {
		return tr.Now()
	}
	return time.Now()
}

// mintFacetID derives a fresh facet id from the article id and the current
// wall-clock timestamp. lastMint tracks the newest timestamp handed out in
// the current pass: several new facets saved in the same millisecond would
// otherwise collide, and the library is keyed by facet id.
func (tr Transformer) mintFacetID(lastMint *int64) string {
	ts := tr.now().UnixMilli()
	if *lastMint > 0 && ts <= *lastMint {
		ts = *lastMint + 1
	}
	*lastMint = ts
	return tr.ArticleID + "-facet-" + strconv.FormatInt(ts, 10)
}

// Normalize returns a copy of the tree with every transform rule applied:
//
//   - the first block is coerced to an article title, preserving its spans
//   - a non-first block whose leading span starts with the facet marker
//     becomes an active facet title (fresh id on first activation)
//   - a facet title whose text has become empty decays to a paragraph,
//     discarding its identity (one-way)
//   - an active facet title without the marker is deactivated, keeping its
//     id and legacy data; an inactive one regaining the marker reactivates
//
// The input tree is not mutated.
func (tr Transformer) Normalize(t Tree) Tree {
	blocks := make([]Block, len(t.Blocks))
	var lastMint int64
	for i, b := range t.Blocks {
		blocks[i] = tr.normalizeBlock(b, i == 0, &lastMint)
	}
	return Tree{Blocks: blocks}
}

func (tr Transformer) normalizeBlock(b Block, first bool, lastMint *int64) Block {
	if first {
		if b.Kind == KindArticleTitle {
			return copyBlock(b)
		}
		// Any other kind in the title position is transparently replaced,
		// keeping its text children. Facet identity does not survive the
		// promotion; the first block can never be a facet title.
		return Block{Kind: KindArticleTitle, Spans: copySpans(b.Spans)}
	}

	lead := leadingText(b)

	switch b.Kind {
	case KindFacetTitle:
		if b.Facet == nil {
			// Malformed block; demote rather than guess an identity.
			return Block{Kind: KindParagraph, Spans: copySpans(b.Spans)}
		}
		if strings.TrimSpace(PlainText(b)) == "" {
			// Empty facet title decays into a plain paragraph. Destructive:
			// re-adding the marker later mints a fresh id.
			return Block{Kind: KindParagraph, Spans: copySpans(b.Spans)}
		}
		hasMarker := strings.HasPrefix(lead, FacetMarker)
		if hasMarker == b.Facet.Active {
			return copyBlock(b)
		}
		data := *b.Facet
		data.Active = hasMarker
		return Block{Kind: KindFacetTitle, Facet: &data, Spans: copySpans(b.Spans)}

	case KindArticleTitle:
		// A title block demoted out of the first position becomes a plain
		// paragraph unless the marker claims it below.
		if strings.HasPrefix(lead, FacetMarker) {
			return Block{
				Kind:  KindFacetTitle,
				Facet: &FacetData{FacetID: tr.mintFacetID(lastMint), Active: true},
				Spans: copySpans(b.Spans),
			}
		}
		return Block{Kind: KindParagraph, Spans: copySpans(b.Spans)}

	default:
		if strings.HasPrefix(lead, FacetMarker) {
			return Block{
				Kind:  KindFacetTitle,
				Facet: &FacetData{FacetID: tr.mintFacetID(lastMint), Active: true},
				Spans: copySpans(b.Spans),
			}
		}
		return copyBlock(b)
	}
}

func copySpans(spans []Span) []Span {
	out := make([]Span, len(spans))
	copy(out, spans)
	return out
}

func copyBlock(b Block) Block {
	out := b
	out.Spans = copySpans(b.Spans)
	if b.Facet != nil {
		data := *b.Facet
		out.Facet = &data
	}
	return out
}

// InsertBlocks returns a copy of the tree with blocks spliced in after
// position index. An index below zero inserts at the front; past the end
// appends.
func InsertBlocks(t Tree, index int, blocks ...Block) Tree {
	at := index + 1
	if at < 0 {
		at = 0
	}
	if at > len(t.Blocks) {
		at = len(t.Blocks)
	}
	out := make([]Block, 0, len(t.Blocks)+len(blocks))
	out = append(out, t.Blocks[:at]...)
	out = append(out, blocks...)
	out = append(out, t.Blocks[at:]...)
	return Tree{Blocks: out}
}
