package imagestore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return store
}

func TestSaveAndExists(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("cat.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !store.Exists(path) {
		t.Fatalf("stored image should exist: %q", path)
	}
	if !strings.HasSuffix(path, "-cat.png") {
		t.Fatalf("expected timestamped name, got %q", path)
	}
}

func TestRemoveToleratesLeadingSlash(t *testing.T) {
	store := newTestStore(t)

	path, err := store.Save("dog.jpg", strings.NewReader("jpg-bytes"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !store.Exists("/" + path) {
		t.Fatal("leading slash should resolve to the same file")
	}
	store.Remove("/" + path)
	if store.Exists(path) {
		t.Fatal("image should be gone after removal via slash-prefixed path")
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	store := newTestStore(t)
	// Must neither panic nor error; repeated removals stay silent.
	store.Remove("images/nothing-here.png")
	store.Remove("")
	store.Remove("/")
}

func TestSaveCleansUpOnCopyFailure(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("broken.png", failingReader{})
	if err == nil {
		t.Fatal("expected error from failing reader")
	}
	entries, err := os.ReadDir(store.root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".png" {
			t.Fatalf("partial file left behind: %s", entry.Name())
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
