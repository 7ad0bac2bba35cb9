// Package source holds the per-site scrapers. Each site implements the
// Source interface, the sync engine never sees a selector.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/fetch"
)

// Body is a fetched chapter: the main content plus the optional
// author's notes around it. Empty strings mean absent.
type Body struct {
	Content   string
	NoteStart string
	NoteEnd   string
}

type Source interface {
	// FetchMetadata returns the book with chapter stubs (identifier,
	// url, date, title) but no bodies.
	FetchMetadata(ctx context.Context, url string) (book.Book, error)
	// FetchChapterContent fetches one chapter's body.
	FetchChapterContent(ctx context.Context, url string) (Body, error)
}

// Freshness is an optional cheap probe for "is there anything new",
// letting the updater skip the full index fetch.
type Freshness interface {
	LastPublished(ctx context.Context, url string) (time.Time, error)
}

type matcher struct {
	prefix string
	build  func(*fetch.Client) Source
}

var table = []matcher{
	{
		prefix: "https://www.royalroad.com/fiction/",
		build:  func(c *fetch.Client) Source { return NewRoyalRoad(c) },
	},
}

// ForURL picks the scraper responsible for url, if any.
func ForURL(client *fetch.Client, url string) (Source, bool) {
	for _, m := range table {
		if strings.HasPrefix(url, m.prefix) {
			return m.build(client), true
		}
	}
	return nil, false
}
