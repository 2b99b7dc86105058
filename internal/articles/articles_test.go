package articles

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/inshell/hone/internal/apperr"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/kvstore"
)

func testStore(t *testing.T) (*Store, *kvstore.Memory) {
	t.Helper()
	kv := kvstore.NewMemory()
	store := NewStore(kv, slog.Default()).
		WithClock(func() time.Time { return time.UnixMilli(1_000) })
	return store, kv
}

func tree(title, body string) document.Tree {
	return document.Tree{Blocks: []document.Block{
		document.NewArticleTitle(title),
		document.NewParagraph(body),
	}}
}

func TestSaveAndGet_RoundTrip(t *testing.T) {
	store, _ := testStore(t)

	result, err := store.Save("a1", tree("Title", "Body"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted || result.Skipped {
		t.Fatalf("result = %+v", result)
	}

	got, err := store.Get("a1")
	if err != nil {
		t.Fatal(err)
	}
	if document.Title(got) != "Title" {
		t.Errorf("title = %q", document.Title(got))
	}
}

func TestGet_MissingIsNotFound(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Get("ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSave_NormalizesFirstBlockToArticleTitle(t *testing.T) {
	store, _ := testStore(t)
	raw := document.Tree{Blocks: []document.Block{
		document.NewParagraph("should become the title"),
	}}

	result, err := store.Save("a1", raw)
	if err != nil {
		t.Fatal(err)
	}
	if result.Tree.Blocks[0].Kind != document.KindArticleTitle {
		t.Errorf("first block kind = %s", result.Tree.Blocks[0].Kind)
	}
}

func TestSave_EmptyTreeDeletesEntry(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Save("a1", tree("Title", "Body")); err != nil {
		t.Fatal(err)
	}

	empty := document.Tree{Blocks: []document.Block{document.NewParagraph("")}}
	result, err := store.Save("a1", empty)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Deleted {
		t.Fatalf("result = %+v, want Deleted", result)
	}
	if _, err := store.Get("a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("entry survived empty save: %v", err)
	}
}

func TestSave_EmptyTreeWithoutEntryIsSkipped(t *testing.T) {
	store, kv := testStore(t)
	empty := document.Tree{}
	result, err := store.Save("never-existed", empty)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped {
		t.Fatalf("result = %+v, want Skipped", result)
	}
	if _, err := kv.Get(Key); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("skipped save still wrote the collection")
	}
}

func TestDelete(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Save("a1", tree("T", "b")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("a1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("a1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestLoad_MalformedBlobReplaced(t *testing.T) {
	store, kv := testStore(t)
	if err := kv.Set(Key, []byte("nope")); err != nil {
		t.Fatal(err)
	}
	if data := store.Load(); len(data) != 0 {
		t.Errorf("data = %v, want empty", data)
	}
}

func TestTrees(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Save("a1", tree("One", "b")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save("a2", tree("Two", "b")); err != nil {
		t.Fatal(err)
	}

	trees := store.Trees()
	if len(trees) != 2 {
		t.Fatalf("trees = %v", trees)
	}
	if document.Title(trees["a2"]) != "Two" {
		t.Errorf("a2 title = %q", document.Title(trees["a2"]))
	}
}

func TestReplace_OverwritesCollection(t *testing.T) {
	store, _ := testStore(t)
	if _, err := store.Save("old", tree("Old", "b")); err != nil {
		t.Fatal(err)
	}

	next := Data{"new": {Content: tree("New", "b"), UpdatedAt: 42}}
	if err := store.Replace(next); err != nil {
		t.Fatal(err)
	}

	data := store.Load()
	if _, ok := data["old"]; ok {
		t.Error("replace kept the old entry")
	}
	if entry, ok := data["new"]; !ok || entry.UpdatedAt != 42 {
		t.Errorf("data = %v", data)
	}
}
