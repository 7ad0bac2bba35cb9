package source

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/fetch"
)

const royalRoadBase = "https://www.royalroad.com"

var (
	// Cover and chapter index live in script tags on the fiction page:
	// window.fictionCover = "..."; window.chapters = [...];
	coverRe    = regexp.MustCompile(`window\.fictionCover = "(.*)";`)
	chaptersRe = regexp.MustCompile(`window\.chapters = (\[.*]);`)
)

type RoyalRoad struct {
	client *fetch.Client
}

func NewRoyalRoad(client *fetch.Client) *RoyalRoad {
	return &RoyalRoad{client: client}
}

// royalRoadChapter is one entry of the window.chapters JSON array.
type royalRoadChapter struct {
	ID    uint32    `json:"id"`
	Order uint32    `json:"order"`
	Date  time.Time `json:"date"`
	Title string    `json:"title"`
	URL   string    `json:"url"`
}

func (rc royalRoadChapter) toChapter() book.Chapter {
	return book.Chapter{
		Identifier:    strconv.FormatUint(uint64(rc.ID), 10),
		DatePublished: rc.Date,
		Title:         rc.Title,
		URL:           royalRoadBase + rc.URL,
	}
}

func (rr *RoyalRoad) FetchMetadata(ctx context.Context, url string) (book.Book, error) {
	page, err := rr.client.GetText(ctx, url)
	if err != nil {
		return book.Book{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return book.Book{}, fmt.Errorf("royalroad: parse fiction page %s: %w", url, err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return book.Book{}, fmt.Errorf("royalroad: no title found at %s", url)
	}

	author := strings.TrimSpace(doc.Find("h4 a").First().Text())
	if author == "" {
		author = "<unknown>"
	}

	description, _ := doc.Find(".description > .hidden-content").First().Html()

	coverMatch := coverRe.FindStringSubmatch(page)
	if coverMatch == nil {
		return book.Book{}, fmt.Errorf("royalroad: no cover found at %s", url)
	}

	chaptersMatch := chaptersRe.FindStringSubmatch(page)
	if chaptersMatch == nil {
		return book.Book{}, fmt.Errorf("royalroad: no chapter index found at %s", url)
	}

	var stubs []royalRoadChapter
	if err := json.Unmarshal([]byte(chaptersMatch[1]), &stubs); err != nil {
		return book.Book{}, fmt.Errorf("royalroad: bad chapter index at %s: %w", url, err)
	}

	chapters := make([]book.Chapter, len(stubs))
	datePublished := time.Now().UTC()
	for i, stub := range stubs {
		chapters[i] = stub.toChapter()
		if chapters[i].DatePublished.Before(datePublished) {
			datePublished = chapters[i].DatePublished
		}
	}

	return book.Book{
		ID:            book.DeriveID(url),
		URL:           url,
		Title:         title,
		Author:        author,
		Description:   strings.TrimSpace(description),
		DatePublished: datePublished,
		CoverURL:      coverMatch[1],
		Chapters:      chapters,
	}, nil
}

func (rr *RoyalRoad) FetchChapterContent(ctx context.Context, url string) (Body, error) {
	page, err := rr.client.GetText(ctx, url)
	if err != nil {
		return Body{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return Body{}, fmt.Errorf("royalroad: parse chapter %s: %w", url, err)
	}

	removeWatermarks(doc)

	content, _ := doc.Find(".chapter-inner.chapter-content").First().Html()
	if strings.TrimSpace(content) == "" {
		return Body{}, fmt.Errorf("royalroad: no chapter content at %s", url)
	}

	// RR marks up start and end notes identically, only the preceding
	// sibling tells them apart.
	noteStart, _ := doc.Find("hr + .portlet > .author-note").First().Html()
	noteEnd, _ := doc.Find("div + .portlet > .author-note").First().Html()

	return Body{
		Content:   content,
		NoteStart: noteStart,
		NoteEnd:   noteEnd,
	}, nil
}

// removeWatermarks drops the short obfuscated-class paragraphs RR
// injects to fingerprint scraped copies.
func removeWatermarks(doc *goquery.Document) {
	doc.Find(`[class^=cj],[class^=cm]`).Each(func(_ int, s *goquery.Selection) {
		if inner, err := s.Html(); err == nil && len(inner) < 200 {
			s.Remove()
		}
	})
}

// rssFeed is the subset of the syndication feed we read.
type rssFeed struct {
	Channel struct {
		Items []struct {
			PubDate string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// LastPublished probes the fiction's RSS feed and returns the newest
// item date. Cheaper than the full fiction page when nothing changed.
func (rr *RoyalRoad) LastPublished(ctx context.Context, url string) (time.Time, error) {
	rssURL := strings.Replace(url,
		royalRoadBase+"/fiction/",
		royalRoadBase+"/fiction/syndication/", 1)

	raw, err := rr.client.GetText(ctx, rssURL)
	if err != nil {
		return time.Time{}, err
	}

	var feed rssFeed
	if err := xml.Unmarshal([]byte(raw), &feed); err != nil {
		return time.Time{}, fmt.Errorf("royalroad: bad rss feed %s: %w", rssURL, err)
	}

	var latest time.Time
	for _, item := range feed.Channel.Items {
		for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
			if ts, err := time.Parse(layout, item.PubDate); err == nil {
				if ts.After(latest) {
					latest = ts
				}
				break
			}
		}
	}

	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("royalroad: no dated items in feed %s", rssURL)
	}

	return latest.UTC(), nil
}
