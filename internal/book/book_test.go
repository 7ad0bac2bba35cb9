package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChapterEqualUsesIdentifierOnly(t *testing.T) {
	content := "<p>hello</p>"
	a := Chapter{
		Identifier:    "12345",
		Title:         "Chapter 1",
		DatePublished: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Content:       &content,
	}
	b := Chapter{
		Identifier:    "12345",
		Title:         "Chapter 1 (revised)",
		DatePublished: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	c := Chapter{Identifier: "67890", Title: "Chapter 1"}

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
}

func TestDeriveID(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "royalroad fiction url",
			url:      "https://www.royalroad.com/fiction/12345/some-story",
			expected: "12345",
		},
		{
			name:     "royalroad fiction url without slug",
			url:      "https://www.royalroad.com/fiction/999",
			expected: "999",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveID(tc.url))
		})
	}

	t.Run("other urls are stable digests", func(t *testing.T) {
		a := DeriveID("https://example.com/story/42")
		b := DeriveID("https://example.com/story/42")
		c := DeriveID("https://example.com/story/43")
		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
		assert.Len(t, a, 12)
	})
}

func TestLatestChapterDate(t *testing.T) {
	old := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	b := Book{Chapters: []Chapter{
		{Identifier: "1", DatePublished: mid},
		{Identifier: "2", DatePublished: recent},
		{Identifier: "3", DatePublished: old},
	}}
	assert.Equal(t, recent, b.LatestChapterDate())
	assert.True(t, Book{}.LatestChapterDate().IsZero())
}

func TestWithoutChapters(t *testing.T) {
	b := Book{ID: "1", Title: "T", Chapters: []Chapter{{Identifier: "c1"}}}
	clone := b.WithoutChapters()
	assert.Empty(t, clone.Chapters)
	assert.Equal(t, "1", clone.ID)
	assert.Len(t, b.Chapters, 1)
}
