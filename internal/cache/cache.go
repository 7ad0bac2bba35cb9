// Package cache is the on-disk store of per-book metadata and image
// blobs. The EPUB file itself is the source of truth for chapter
// content, the cache only spares network round-trips and feeds the
// `list` command.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brogergvhs/noveld/internal/book"
)

type Cache struct {
	root string
}

// New opens a cache rooted at dir, or at the user cache directory when
// dir is empty. Entries live under <root>/<book id>/, so two books
// never share files.
func New(dir string) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("cache: no cache directory: %w", err)
		}
		dir = filepath.Join(base, "noveld")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	return &Cache{root: dir}, nil
}

func (c *Cache) bookDir(id string) string {
	return filepath.Join(c.root, id)
}

// WriteBook stores the book metadata. Chapter bodies and author notes
// are stripped first, the archive already holds them.
func (c *Cache) WriteBook(b book.Book) error {
	stripped := b
	stripped.Chapters = make([]book.Chapter, len(b.Chapters))
	for i, ch := range b.Chapters {
		ch.Content = nil
		ch.AuthorsNoteStart = nil
		ch.AuthorsNoteEnd = nil
		stripped.Chapters[i] = ch
	}

	data, err := json.MarshalIndent(stripped, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal book %s: %w", b.ID, err)
	}

	dir := c.bookDir(b.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "book.json"), data, 0644); err != nil {
		return fmt.Errorf("cache: write book %s: %w", b.ID, err)
	}

	return nil
}

// ReadBook loads the stored metadata for id. A missing entry is
// reported through ok, not as an error.
func (c *Cache) ReadBook(id string) (b book.Book, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(c.bookDir(id), "book.json"))
	if os.IsNotExist(err) {
		return book.Book{}, false, nil
	}
	if err != nil {
		return book.Book{}, false, fmt.Errorf("cache: read book %s: %w", id, err)
	}

	if err := json.Unmarshal(data, &b); err != nil {
		return book.Book{}, false, fmt.Errorf("cache: corrupt entry for %s: %w", id, err)
	}

	return b, true, nil
}

// Books lists every cached book, for `noveld list`.
func (c *Cache) Books() ([]book.Book, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	var books []book.Book
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, ok, err := c.ReadBook(e.Name())
		if err != nil || !ok {
			continue
		}
		books = append(books, b)
	}

	return books, nil
}

func (c *Cache) WriteImage(id, filename string, data []byte) error {
	dir := filepath.Join(c.bookDir(id), "images")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return fmt.Errorf("cache: write image %s/%s: %w", id, filename, err)
	}

	return nil
}

// ReadImage returns the cached blob for id/filename. A miss is (nil,
// false, nil).
func (c *Cache) ReadImage(id, filename string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(c.bookDir(id), "images", filename))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read image %s/%s: %w", id, filename, err)
	}

	return data, true, nil
}
