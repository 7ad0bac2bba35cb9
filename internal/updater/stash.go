package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/epub"
)

// StashAndRecreate moves a broken or stale archive into a stash
// subfolder and rebuilds it from its source URL under the original
// name. The recovery path for MoreChapterThanSource and corrupted
// books.
func (n *Native) StashAndRecreate(ctx context.Context, path string) (book.Book, string, error) {
	reader := &epub.Reader{Cache: n.Cache, Log: n.log()}
	current, err := reader.Read(path)
	if err != nil {
		return book.Book{}, "", err
	}
	if current.URL == "" {
		return book.Book{}, "", fmt.Errorf("%s carries no source url, cannot recreate", path)
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	stashDir := filepath.Join(dir, "stash")
	if err := os.MkdirAll(stashDir, 0755); err != nil {
		return book.Book{}, "", fmt.Errorf("stash: %w", err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stamp := time.Now().UTC().Format("2006-01-02_15h04")
	stashed := filepath.Join(stashDir, fmt.Sprintf("%s_%s%s", stem, stamp, filepath.Ext(name)))
	if err := os.Rename(path, stashed); err != nil {
		return book.Book{}, "", fmt.Errorf("stash: %w", err)
	}

	n.log().Debugf("stashed %s as %s\n", path, stashed)
	return n.Create(ctx, dir, name, current.URL)
}
