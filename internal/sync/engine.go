// Package sync reconciles a freshly fetched chapter index against the
// previously materialized book and fetches only what changed.
package sync

import (
	"context"
	"fmt"
	"math"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/source"
)

type logger interface {
	Debugf(string, ...any)
	Errorf(string, ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Errorf(string, ...any) {}

// Progress receives one SetTotal before fetching starts and one
// Increment per refreshed chapter. Up-to-date books never touch it.
type Progress interface {
	SetTotal(total int)
	Increment()
}

type noopProgress struct{}

func (noopProgress) SetTotal(int) {}
func (noopProgress) Increment()   {}

// Engine merges remote state into current state for one book. It is
// cheap to construct, callers build one per sync pass so each book can
// carry its own progress handle.
type Engine struct {
	Source   source.Source
	Progress Progress
	Log      logger
}

// Sync reconciles remote (the fresh index, chapter stubs only) against
// current (the previously materialized book):
//
//  1. chapters present in both whose remote date moved forward are
//     marked for refresh,
//  2. chapters unknown to current are appended, in the remote index's
//     internal order, and marked for refresh,
//  3. every marked chapter's body is fetched, per-chapter failures are
//     logged and the chapter stays empty,
//  4. chapters still without content are dropped,
//  5. metadata and the cover URL always follow remote.
//
// Chapters are the same chapter iff their identifiers match, content
// and dates never participate.
func (e *Engine) Sync(ctx context.Context, remote, current book.Book) (book.Book, Result) {
	log := e.Log
	if log == nil {
		log = noopLogger{}
	}
	prog := e.Progress
	if prog == nil {
		prog = noopProgress{}
	}

	known := make(map[string]book.Chapter, len(current.Chapters))
	for _, c := range current.Chapters {
		known[c.Identifier] = c
	}

	toRefresh := make(map[string]bool)

	var fresh []book.Chapter
	for _, rc := range remote.Chapters {
		cc, ok := known[rc.Identifier]
		switch {
		case !ok:
			fresh = append(fresh, rc)
			toRefresh[rc.Identifier] = true
		case rc.DatePublished.After(cc.DatePublished):
			toRefresh[rc.Identifier] = true
		}
	}

	// An index claiming more deltas than the result type can count is
	// corrupt, refuse it before fetching anything.
	if len(toRefresh) > math.MaxUint16 {
		return current, ResultError(fmt.Errorf(
			"%d changed chapters reported by %s, refusing a remote index that large",
			len(toRefresh), remote.URL))
	}
	count := uint16(len(toRefresh))

	merged := remote.WithoutChapters()
	merged.ID = current.ID
	if merged.ID == "" {
		merged.ID = book.DeriveID(remote.URL)
	}
	merged.Chapters = append(append([]book.Chapter{}, current.Chapters...), fresh...)

	if count > 0 {
		prog.SetTotal(int(count))
	}

	for i := range merged.Chapters {
		c := &merged.Chapters[i]
		if !toRefresh[c.Identifier] {
			continue
		}
		// Keep dates aligned with the stub that triggered the refresh.
		if rc, ok := stubFor(remote.Chapters, c.Identifier); ok {
			c.DatePublished = rc.DatePublished
			c.Title = rc.Title
			c.URL = rc.URL
		}

		body, err := e.Source.FetchChapterContent(ctx, c.URL)
		if err != nil {
			log.Errorf("could not download chapter %q: %v\n", c.Title, err)
			c.Content = nil
			prog.Increment()
			continue
		}

		c.Content = &body.Content
		c.AuthorsNoteStart = optional(body.NoteStart)
		c.AuthorsNoteEnd = optional(body.NoteEnd)
		prog.Increment()
	}

	// Content is what makes a chapter exist in the output. This also
	// prunes leftovers of an earlier partial run.
	kept := merged.Chapters[:0]
	for _, c := range merged.Chapters {
		if c.HasContent() {
			kept = append(kept, c)
		}
	}
	merged.Chapters = kept

	if count == 0 {
		return merged, ResultUpToDate()
	}
	return merged, ResultUpdated(count)
}

func stubFor(chapters []book.Chapter, identifier string) (book.Chapter, bool) {
	for _, c := range chapters {
		if c.Identifier == identifier {
			return c, true
		}
	}
	return book.Chapter{}, false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
