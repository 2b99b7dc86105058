package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/inshell/hone/internal/articles"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/editions"
	"github.com/inshell/hone/internal/library"
)

func sampleData() articles.Data {
	return articles.Data{
		"a1": {
			Content: document.Tree{Blocks: []document.Block{
				document.NewArticleTitle("Title"),
				document.NewParagraph("Body"),
			}},
			UpdatedAt: 100,
		},
	}
}

func TestBuildAndNormalize_RoundTrip(t *testing.T) {
	lib := library.State{
		Version:    library.Version,
		UpdatedAt:  200,
		FacetsByID: map[string]library.Item{"f1": {FacetID: "f1", Title: "F", HonedFrom: []library.Edge{}}},
	}
	eds := editions.State{
		Version:  editions.Version,
		Articles: map[string]editions.ArticleRecord{},
	}

	payload := Build(sampleData(), lib, eds, time.UnixMilli(999))
	if payload.Version != Version || payload.ExportedAt != 999 {
		t.Fatalf("payload = %+v", payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Legacy {
		t.Error("wrapped payload detected as legacy")
	}
	if len(got.HoneData) != 1 {
		t.Errorf("honeData = %v", got.HoneData)
	}
	if _, ok := got.FacetsLibraryV2.FacetsByID["f1"]; !ok {
		t.Errorf("library = %v", got.FacetsLibraryV2)
	}
}

func TestNormalize_LegacyBareArticleMap(t *testing.T) {
	raw, err := json.Marshal(sampleData())
	if err != nil {
		t.Fatal(err)
	}

	got, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Legacy {
		t.Error("bare article map not detected as legacy")
	}
	if len(got.HoneData) != 1 {
		t.Errorf("honeData = %v", got.HoneData)
	}
	if len(got.FacetsLibraryV2.FacetsByID) != 0 || got.FacetsLibraryV2.Version != library.Version {
		t.Errorf("library = %+v, want fresh empty", got.FacetsLibraryV2)
	}
	if len(got.ArticleEditions.Articles) != 0 {
		t.Errorf("editions = %+v, want empty", got.ArticleEditions)
	}
}

func TestNormalize_UnrecognizedInputYieldsEmptyPayload(t *testing.T) {
	for _, raw := range []string{`"just a string"`, `[1,2,3]`, `{}`, `not json at all`} {
		got, err := Normalize([]byte(raw))
		if err != nil {
			t.Fatalf("Normalize(%q) = %v", raw, err)
		}
		if len(got.HoneData) != 0 || len(got.FacetsLibraryV2.FacetsByID) != 0 || len(got.ArticleEditions.Articles) != 0 {
			t.Errorf("Normalize(%q) = %+v, want all-empty", raw, got)
		}
	}
}

func TestNormalize_WrappedWithStaleLibraryVersion(t *testing.T) {
	payload := Build(sampleData(), library.State{Version: 1, FacetsByID: map[string]library.Item{"x": {}}}, editions.State{}, time.UnixMilli(1))
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.FacetsLibraryV2.FacetsByID) != 0 {
		t.Error("stale library version leaked entries")
	}
	if len(got.HoneData) != 1 {
		t.Error("article data lost")
	}
}
