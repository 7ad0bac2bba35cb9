package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/noveld/internal/fetch"
)

const fictionPage = `<!DOCTYPE html>
<html><head>
<script>
window.fictionCover = "https://cdn.example.com/covers/12345.jpg";
window.chapters = [{"id":100,"order":1,"date":"2024-01-05T10:00:00Z","title":"One","url":"/fiction/12345/story/chapter/100/one"},{"id":101,"order":2,"date":"2024-02-05T10:00:00Z","title":"Two","url":"/fiction/12345/story/chapter/101/two"}];
</script>
</head><body>
<h1>The Story</h1>
<h4>by <a href="/profile/1">Author Person</a></h4>
<div class="description"><div class="hidden-content"><p>A tale.</p></div></div>
</body></html>`

const chapterPage = `<!DOCTYPE html>
<html><body>
<hr/><div class="portlet"><div class="author-note">Start note</div></div>
<div class="chapter-inner chapter-content"><p>Once upon a time.</p>
<p class="cjX9f8">This story was stolen, report it.</p>
<p>The end of the paragraph.</p></div>
<div></div><div class="portlet"><div class="author-note">End note</div></div>
</body></html>`

func testClient(t *testing.T) *fetch.Client {
	t.Helper()
	c, err := fetch.New(fetch.Options{
		RequestsPerSecond: 1000,
		Burst:             1000,
		BackoffBase:       time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestFetchMetadata(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fictionPage))
	}))
	defer ts.Close()

	rr := NewRoyalRoad(testClient(t))
	b, err := rr.FetchMetadata(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "The Story", b.Title)
	assert.Equal(t, "Author Person", b.Author)
	assert.Contains(t, b.Description, "A tale.")
	assert.Equal(t, "https://cdn.example.com/covers/12345.jpg", b.CoverURL)

	require.Len(t, b.Chapters, 2)
	assert.Equal(t, "100", b.Chapters[0].Identifier)
	assert.Equal(t, "https://www.royalroad.com/fiction/12345/story/chapter/100/one", b.Chapters[0].URL)
	assert.Equal(t, "Two", b.Chapters[1].Title)
	// book date is the earliest chapter date
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), b.DatePublished)

	// stubs carry no content
	assert.Nil(t, b.Chapters[0].Content)
}

func TestFetchMetadataWithoutIndexFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><h1>The Story</h1></body></html>"))
	}))
	defer ts.Close()

	rr := NewRoyalRoad(testClient(t))
	_, err := rr.FetchMetadata(context.Background(), ts.URL)
	assert.Error(t, err)
}

func TestFetchChapterContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chapterPage))
	}))
	defer ts.Close()

	rr := NewRoyalRoad(testClient(t))
	body, err := rr.FetchChapterContent(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Contains(t, body.Content, "Once upon a time.")
	assert.Contains(t, body.Content, "The end of the paragraph.")
	assert.NotContains(t, body.Content, "stolen", "watermark paragraph must be dropped")
	assert.Contains(t, body.NoteStart, "Start note")
	assert.Contains(t, body.NoteEnd, "End note")
}

func TestFetchChapterContentEmptyIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>no content div here</p></body></html>"))
	}))
	defer ts.Close()

	rr := NewRoyalRoad(testClient(t))
	_, err := rr.FetchChapterContent(context.Background(), ts.URL)
	assert.Error(t, err)
}

func TestLastPublished(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><pubDate>Mon, 05 Feb 2024 10:00:00 +0000</pubDate></item>
<item><pubDate>Tue, 05 Mar 2024 10:00:00 +0000</pubDate></item>
</channel></rss>`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer ts.Close()

	rr := NewRoyalRoad(testClient(t))
	got, err := rr.LastPublished(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), got)
}

func TestForURL(t *testing.T) {
	c := testClient(t)

	s, ok := ForURL(c, "https://www.royalroad.com/fiction/12345/some-story")
	require.True(t, ok)
	assert.IsType(t, &RoyalRoad{}, s)

	_, ok = ForURL(c, "https://example.com/other/novel")
	assert.False(t, ok)
}
