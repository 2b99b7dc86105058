package kvstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inshell/hone/internal/apperr"
)

func TestFS_SetGetRoundTrip(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := fs.Set("facetLibrary", []byte(`{"version":2}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := fs.Get("facetLibrary")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"version":2}` {
		t.Errorf("blob = %s", got)
	}
}

func TestFS_GetMissingReturnsNotFound(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Get("absent"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFS_RejectsPathKeys(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := fs.Set(key, []byte("x")); err == nil {
			t.Errorf("Set(%q) succeeded, want error", key)
		}
	}
}

func TestFS_SetOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Set("k", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := fs.Set("k", []byte("two")); err != nil {
		t.Fatal(err)
	}
	got, err := fs.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two" {
		t.Errorf("blob = %s, want two", got)
	}

	// No temp litter left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != blobExt {
			t.Errorf("unexpected file in data dir: %s", e.Name())
		}
	}
}

func TestFS_Keys(t *testing.T) {
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"honeData", "articleEditions", "facetLibrary"} {
		if err := fs.Set(k, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := fs.Keys()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"articleEditions", "facetLibrary", "honeData"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestMemory_RoundTripAndIsolation(t *testing.T) {
	m := NewMemory()
	if err := m.Set("k", []byte("abc")); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	got[0] = 'x' // mutating the returned copy must not affect the store
	again, err := m.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != "abc" {
		t.Errorf("blob = %s, want abc", again)
	}
	if _, err := m.Get("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWatch_ReportsChangedKey(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 8)
	go func() {
		_ = Watch(ctx, dir, slog.Default(), func(key string) {
			changed <- key
		})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := fs.Set("facetLibrary", []byte("{}")); err != nil {
		t.Fatal(err)
	}

	select {
	case key := <-changed:
		if key != "facetLibrary" {
			t.Errorf("key = %s, want facetLibrary", key)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification received")
	}
}
