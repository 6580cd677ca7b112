// Package imagecache keeps the most recent generated scene images on disk,
// bounded to a fixed number of entries. Filenames carry a strictly increasing
// key, so sorting them is sorting by creation and the oldest entries are
// always the ones evicted.
package imagecache

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity bounds the cache when no explicit capacity is configured.
const DefaultCapacity = 10

type Cache struct {
	dir      string
	capacity int
	client   *http.Client

	mu      sync.Mutex
	lastKey int64
}

func New(dir string, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir image cache: %w", err)
	}
	return &Cache{dir: dir, capacity: capacity, client: &http.Client{}}, nil
}

// Insert stores a copy of the image at source and returns the cached
// filename. A source starting with http(s):// is downloaded; anything else is
// treated as a local temporary file, which is removed after the copy (removal
// failure is logged, not returned). Insertion and eviction run inside one
// critical section, so the cache never exceeds its capacity once Insert
// returns.
func (c *Cache) Insert(ctx context.Context, source string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filename := fmt.Sprintf("scene_%d.png", c.nextKey())
	path := filepath.Join(c.dir, filename)

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if err := c.download(ctx, source, path); err != nil {
			return "", err
		}
	} else {
		if err := copyFile(source, path); err != nil {
			return "", fmt.Errorf("copy image into cache: %w", err)
		}
		if err := os.Remove(source); err != nil {
			log.Printf("warning: remove temporary image %s: %v", source, err)
		}
	}

	c.evict()
	return filename, nil
}

// PathOf resolves a cached filename to its path on disk.
func (c *Cache) PathOf(filename string) string {
	return filepath.Join(c.dir, filepath.Base(filename))
}

// Latest returns the filename of the most recently inserted entry still on
// disk, or false when the cache is empty.
func (c *Cache) Latest() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.entries()
	if len(entries) == 0 {
		return "", false
	}
	return filepath.Base(entries[len(entries)-1]), true
}

// Clear removes every cached image. It keeps going past individual removal
// failures and returns the first one encountered.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, entry := range c.entries() {
		if err := os.Remove(entry); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clear cache: %w", err)
		}
	}
	return firstErr
}

// nextKey derives a creation-ordered filename key. Keys are forced strictly
// increasing under the cache mutex so two inserts in the same nanosecond
// cannot collide or reorder.
func (c *Cache) nextKey() int64 {
	key := time.Now().UnixNano()
	if key <= c.lastKey {
		key = c.lastKey + 1
	}
	c.lastKey = key
	return key
}

func (c *Cache) evict() {
	entries := c.entries()
	for len(entries) > c.capacity {
		if err := os.Remove(entries[0]); err != nil {
			log.Printf("warning: evict cached image %s: %v", entries[0], err)
		}
		entries = entries[1:]
	}
}

func (c *Cache) entries() []string {
	entries, err := filepath.Glob(filepath.Join(c.dir, "scene_*.png"))
	if err != nil {
		return nil
	}
	sort.Strings(entries)
	return entries
}

func (c *Cache) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build image request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize cache file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
