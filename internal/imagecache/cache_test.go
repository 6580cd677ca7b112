package imagecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newTestCache(t *testing.T, capacity int) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), capacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeTempImage(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "generated.png")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp image: %v", err)
	}
	return path
}

func cachedFiles(t *testing.T, c *Cache) []string {
	t.Helper()
	entries, err := filepath.Glob(filepath.Join(c.dir, "scene_*.png"))
	if err != nil {
		t.Fatalf("glob cache dir: %v", err)
	}
	sort.Strings(entries)
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = filepath.Base(entry)
	}
	return names
}

func TestInsertLocalSourceMovesIntoCache(t *testing.T) {
	c := newTestCache(t, 5)
	source := writeTempImage(t, t.TempDir(), "image bytes")

	filename, err := c.Insert(context.Background(), source)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	data, err := os.ReadFile(c.PathOf(filename))
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("expected cached content preserved, got %q", data)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Errorf("expected temporary source removed, got %v", err)
	}
}

func TestInsertEvictsOldestBeyondCapacity(t *testing.T) {
	c := newTestCache(t, 3)
	sourceDir := t.TempDir()

	var inserted []string
	for i := 0; i < 7; i++ {
		source := writeTempImage(t, sourceDir, "img")
		filename, err := c.Insert(context.Background(), source)
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		inserted = append(inserted, filename)
	}

	remaining := cachedFiles(t, c)
	if len(remaining) != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", len(remaining))
	}
	want := inserted[len(inserted)-3:]
	for i, name := range want {
		if remaining[i] != name {
			t.Errorf("expected surviving entry %q, got %q", name, remaining[i])
		}
	}
}

func TestFilenamesAreCreationOrdered(t *testing.T) {
	c := newTestCache(t, 20)
	sourceDir := t.TempDir()

	var inserted []string
	for i := 0; i < 10; i++ {
		source := writeTempImage(t, sourceDir, "img")
		filename, err := c.Insert(context.Background(), source)
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		inserted = append(inserted, filename)
	}

	sorted := append([]string(nil), inserted...)
	sort.Strings(sorted)
	for i := range inserted {
		if inserted[i] != sorted[i] {
			t.Fatalf("expected filename order to match insertion order, got %v", inserted)
		}
	}
}

func TestLatest(t *testing.T) {
	c := newTestCache(t, 5)

	if _, ok := c.Latest(); ok {
		t.Fatal("expected no latest entry in empty cache")
	}

	sourceDir := t.TempDir()
	var last string
	for i := 0; i < 3; i++ {
		source := writeTempImage(t, sourceDir, "img")
		filename, err := c.Insert(context.Background(), source)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		last = filename
	}

	latest, ok := c.Latest()
	if !ok {
		t.Fatal("expected a latest entry")
	}
	if latest != last {
		t.Errorf("expected latest %q, got %q", last, latest)
	}
}

func TestInsertFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote image"))
	}))
	defer server.Close()

	c := newTestCache(t, 5)
	filename, err := c.Insert(context.Background(), server.URL+"/image.png")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	data, err := os.ReadFile(c.PathOf(filename))
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(data) != "remote image" {
		t.Errorf("expected downloaded content, got %q", data)
	}
}

func TestInsertFromURLFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestCache(t, 5)
	if _, err := c.Insert(context.Background(), server.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for failed download")
	}
	if files := cachedFiles(t, c); len(files) != 0 {
		t.Errorf("expected no cache entries after failed download, got %v", files)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, 5)
	sourceDir := t.TempDir()
	for i := 0; i < 3; i++ {
		source := writeTempImage(t, sourceDir, "img")
		if _, err := c.Insert(context.Background(), source); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if files := cachedFiles(t, c); len(files) != 0 {
		t.Errorf("expected empty cache after Clear, got %v", files)
	}
	if _, ok := c.Latest(); ok {
		t.Error("expected no latest entry after Clear")
	}
}
