package mcpserver

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/inshell/hone/internal/document"
)

// contractExampleJSON extracts the fenced JSON example from the contract so
// the test always checks what is actually published.
func contractExampleJSON(t *testing.T) string {
	t.Helper()
	const open = "```json\n"
	start := strings.Index(DocumentFormatContract, open)
	if start < 0 {
		t.Fatal("contract has no json example")
	}
	rest := DocumentFormatContract[start+len(open):]
	end := strings.Index(rest, "```")
	if end < 0 {
		t.Fatal("contract json example is unterminated")
	}
	return rest[:end]
}

func TestDocumentFormatContract_ExampleMatchesTreeEncoding(t *testing.T) {
	var tree document.Tree
	if err := json.Unmarshal([]byte(contractExampleJSON(t)), &tree); err != nil {
		t.Fatalf("unmarshal contract example: %v", err)
	}

	if len(tree.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(tree.Blocks))
	}
	if tree.Blocks[0].Kind != document.KindArticleTitle {
		t.Errorf("first block kind = %q, want article-title", tree.Blocks[0].Kind)
	}
	if got := document.PlainText(tree.Blocks[0]); got != "My Article" {
		t.Errorf("title text = %q, contract keys must match the wire tags", got)
	}
	facet := tree.Blocks[1].Facet
	if facet == nil || facet.FacetID != "my-article-facet-1700000000000" || !facet.Active {
		t.Errorf("facet data = %+v, want id and active from the example", facet)
	}

	// A tree built from the example must read as non-empty, otherwise a
	// consumer following the contract saves a document that gets deleted.
	if len(document.CollectText(tree)) == 0 {
		t.Error("contract example collects no text")
	}
}
