package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/noveld/internal/book"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir())
	require.NoError(t, err)
	return c
}

func TestBookRoundTripStripsContent(t *testing.T) {
	c := testCache(t)
	content := "<p>body</p>"
	note := "<p>note</p>"

	b := book.Book{
		ID:            "12345",
		URL:           "https://www.royalroad.com/fiction/12345",
		Title:         "A Story",
		Author:        "Someone",
		DatePublished: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Chapters: []book.Chapter{
			{Identifier: "1", Title: "One", Content: &content, AuthorsNoteEnd: &note},
		},
	}
	require.NoError(t, c.WriteBook(b))

	got, ok, err := c.ReadBook("12345")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A Story", got.Title)
	require.Len(t, got.Chapters, 1)
	assert.Equal(t, "1", got.Chapters[0].Identifier)
	assert.Nil(t, got.Chapters[0].Content)
	assert.Nil(t, got.Chapters[0].AuthorsNoteEnd)

	// the caller's copy is untouched
	assert.NotNil(t, b.Chapters[0].Content)
}

func TestReadBookMissIsNotAnError(t *testing.T) {
	c := testCache(t)
	_, ok, err := c.ReadBook("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestImagesAreScopedByBookID(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.WriteImage("111", "cover.jpg", []byte("aaa")))
	require.NoError(t, c.WriteImage("222", "cover.jpg", []byte("bbb")))

	a, ok, err := c.ReadImage("111", "cover.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("aaa"), a)

	b, ok, err := c.ReadImage("222", "cover.jpg")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("bbb"), b)

	_, ok, err = c.ReadImage("333", "cover.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBooksListsCachedEntries(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.WriteBook(book.Book{ID: "1", Title: "First"}))
	require.NoError(t, c.WriteBook(book.Book{ID: "2", Title: "Second"}))

	books, err := c.Books()
	require.NoError(t, err)
	assert.Len(t, books, 2)
}
