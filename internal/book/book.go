package book

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

type Book struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	DatePublished time.Time `json:"date_published"`
	CoverURL      string    `json:"cover_url"`
	Chapters      []Chapter `json:"chapters"`
}

type Chapter struct {
	Identifier       string    `json:"identifier"`
	DatePublished    time.Time `json:"date_published"`
	Title            string    `json:"title"`
	URL              string    `json:"url"`
	Content          *string   `json:"content,omitempty"`
	AuthorsNoteStart *string   `json:"authors_note_start,omitempty"`
	AuthorsNoteEnd   *string   `json:"authors_note_end,omitempty"`
}

// Equal reports whether two chapters refer to the same source chapter.
// Only the identifier participates, never dates, titles or content.
func (c Chapter) Equal(other Chapter) bool {
	return c.Identifier == other.Identifier
}

func (c Chapter) HasContent() bool {
	return c.Content != nil
}

func (b Book) WithoutChapters() Book {
	clone := b
	clone.Chapters = nil
	return clone
}

// LatestChapterDate returns the newest publication date among the
// book's chapters, or the zero time for an empty book.
func (b Book) LatestChapterDate() time.Time {
	var latest time.Time
	for _, c := range b.Chapters {
		if c.DatePublished.After(latest) {
			latest = c.DatePublished
		}
	}
	return latest
}

// DeriveID maps a source URL to a stable book id. RoyalRoad fiction
// URLs keep their numeric id so cache folders stay recognizable, any
// other URL gets a digest prefix. The same URL always yields the same
// id, ids are never generated randomly.
func DeriveID(rawurl string) string {
	if u, err := url.Parse(rawurl); err == nil && strings.Contains(u.Hostname(), "royalroad") {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) >= 2 && segs[0] == "fiction" && segs[1] != "" {
			return segs[1]
		}
	}
	sum := sha256.Sum256([]byte(rawurl))
	return hex.EncodeToString(sum[:6])
}
