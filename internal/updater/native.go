// Package updater ties the pieces of one book's update together: parse
// the existing archive, pick a source adapter, sync, rewrite. Books
// whose source no site adapter claims can be delegated to an external
// updater program.
package updater

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/cache"
	"github.com/brogergvhs/noveld/internal/epub"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/source"
	booksync "github.com/brogergvhs/noveld/internal/sync"
)

// ErrUnsupported is returned by Create when no adapter claims the URL.
var ErrUnsupported = errors.New("no source adapter for this url")

type logger interface {
	Debugf(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Native updates books through the built-in scrapers. The EPUB at the
// given path is both input (previous state) and output.
type Native struct {
	Client *fetch.Client
	Cache  *cache.Cache
	Log    logger
	// Progress builds a per-book progress handle, keyed by title. Nil
	// means silent.
	Progress func(title string) booksync.Progress
}

func (n *Native) log() logger {
	if n.Log == nil {
		return noopLogger{}
	}
	return n.Log
}

func (n *Native) progressFor(title string) booksync.Progress {
	if n.Progress == nil {
		return nil
	}
	return n.Progress(title)
}

// Update re-synchronizes the archive at path against its source site.
// It only rewrites the archive when something actually changed.
func (n *Native) Update(ctx context.Context, path string) booksync.Result {
	reader := &epub.Reader{Cache: n.Cache, Log: n.log()}
	current, err := reader.Read(path)
	if err != nil {
		return booksync.ResultError(fmt.Errorf("%s: %w", path, err))
	}

	src, ok := source.ForURL(n.Client, current.URL)
	if !ok {
		return booksync.ResultUnsupported()
	}

	// A cheap freshness probe spares the full index fetch for books
	// with nothing new. Probe failures just mean doing the real work.
	if fr, ok := src.(source.Freshness); ok {
		if last, err := fr.LastPublished(ctx, current.URL); err == nil {
			if !current.LatestChapterDate().Before(last) {
				return booksync.ResultUpToDate()
			}
		} else {
			n.log().Debugf("freshness probe failed for %s: %v\n", current.URL, err)
		}
	}

	remote, err := src.FetchMetadata(ctx, current.URL)
	if err != nil {
		return booksync.ResultError(fmt.Errorf("%s: %w", current.URL, err))
	}

	engine := &booksync.Engine{
		Source:   src,
		Progress: n.progressFor(current.Title),
		Log:      n.log(),
	}
	merged, res := engine.Sync(ctx, remote, current)
	if res.Kind != booksync.Updated {
		return res
	}

	writer := &epub.Writer{Fetch: n.Client, Cache: n.Cache, Log: n.log()}
	if err := writer.Write(ctx, merged, path); err != nil {
		return booksync.ResultError(err)
	}

	if n.Cache != nil {
		if err := n.Cache.WriteBook(merged); err != nil {
			n.log().Warnf("%v\n", err)
		}
	}

	return res
}

// Create fetches url from scratch and writes a fresh archive into dir.
// filename overrides the default <sanitized title>.epub when not empty.
// It returns the materialized book and the path written.
func (n *Native) Create(ctx context.Context, dir, filename, url string) (book.Book, string, error) {
	src, ok := source.ForURL(n.Client, url)
	if !ok {
		return book.Book{}, "", fmt.Errorf("%w: %s", ErrUnsupported, url)
	}

	remote, err := src.FetchMetadata(ctx, url)
	if err != nil {
		return book.Book{}, "", err
	}

	engine := &booksync.Engine{
		Source:   src,
		Progress: n.progressFor(remote.Title),
		Log:      n.log(),
	}
	merged, res := engine.Sync(ctx, remote, remote.WithoutChapters())
	if res.Kind == booksync.Failed {
		return book.Book{}, "", res.Err
	}

	if filename == "" {
		filename = epub.OutputName(remote.Title)
	}
	path := filepath.Join(dir, filename)

	writer := &epub.Writer{Fetch: n.Client, Cache: n.Cache, Log: n.log()}
	if err := writer.Write(ctx, merged, path); err != nil {
		return book.Book{}, "", err
	}

	if n.Cache != nil {
		if err := n.Cache.WriteBook(merged); err != nil {
			n.log().Warnf("%v\n", err)
		}
	}

	return merged, path, nil
}
