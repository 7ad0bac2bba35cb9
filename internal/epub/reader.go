package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/cache"
)

// Reader parses an archive back into the in-memory model. It handles
// both our own archives (via the embedded meta tags) and
// FanFicFare-generated ones (via content heuristics), so a library
// started with another tool can still be diffed and taken over.
type Reader struct {
	Cache *cache.Cache
	Log   logger
}

type opfContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Title       string `xml:"title"`
		Creator     string `xml:"creator"`
		Source      string `xml:"source"`
		Description string `xml:"description"`
		Date        string `xml:"date"`
		Identifier  string `xml:"identifier"`
		Metas       []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemrefs []struct {
			IDref string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Read parses the archive at p into a Book usable as "current" state
// for the next sync pass. Image resources are copied into the cache on
// the way so a rewrite does not redownload them.
func (r *Reader) Read(p string) (book.Book, error) {
	log := r.Log
	if log == nil {
		log = noopLogger{}
	}

	zr, err := zip.OpenReader(p)
	if err != nil {
		return book.Book{}, fmt.Errorf("%w: %s: %v", ErrFormat, p, err)
	}
	defer func() { _ = zr.Close() }()

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	opfPath, err := locateOPF(byName)
	if err != nil {
		return book.Book{}, err
	}

	opfRaw, err := readEntry(byName, opfPath)
	if err != nil {
		return book.Book{}, err
	}

	var pkg opfPackage
	if err := xml.Unmarshal(opfRaw, &pkg); err != nil {
		return book.Book{}, fmt.Errorf("%w: bad package document %s: %v", ErrFormat, opfPath, err)
	}

	now := time.Now().UTC()
	b := book.Book{
		URL:         pkg.Metadata.Source,
		Title:       pkg.Metadata.Title,
		Author:      pkg.Metadata.Creator,
		Description: pkg.Metadata.Description,
	}
	b.ID = pkg.Metadata.Identifier
	if b.ID == "" && b.URL != "" {
		b.ID = book.DeriveID(b.URL)
	}
	b.DatePublished = now
	if ts, err := time.Parse(time.RFC3339, pkg.Metadata.Date); err == nil {
		b.DatePublished = ts
	}

	root := path.Dir(opfPath)
	items := make(map[string]opfItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		items[item.ID] = item
	}

	r.stashImages(byName, root, pkg, b.ID, log)

	for _, ref := range pkg.Spine.Itemrefs {
		item, ok := items[ref.IDref]
		if !ok || item.ID == "title" || item.ID == "nav" || item.Properties == "nav" {
			continue
		}
		if item.MediaType != "application/xhtml+xml" {
			continue
		}

		raw, err := readEntry(byName, path.Join(root, item.Href))
		if err != nil {
			log.Warnf("unreadable chapter %s: %v\n", item.Href, err)
			continue
		}

		fileID := strings.TrimSuffix(item.ID, ".xhtml")
		b.Chapters = append(b.Chapters, extractChapter(fileID, string(raw), now))
	}

	return b, nil
}

// stashImages copies every image resource, the declared cover
// included, into the per-book cache keyed by filename.
func (r *Reader) stashImages(byName map[string]*zip.File, root string, pkg opfPackage, bookID string, log logger) {
	if r.Cache == nil || bookID == "" {
		return
	}

	for _, item := range pkg.Manifest.Items {
		if !strings.HasPrefix(item.MediaType, "image/") {
			continue
		}
		data, err := readEntry(byName, path.Join(root, item.Href))
		if err != nil {
			log.Warnf("unreadable image %s: %v\n", item.Href, err)
			continue
		}
		if err := r.Cache.WriteImage(bookID, path.Base(item.Href), data); err != nil {
			log.Warnf("%v\n", err)
		}
	}
}

func locateOPF(byName map[string]*zip.File) (string, error) {
	raw, err := readEntry(byName, "META-INF/container.xml")
	if err != nil {
		return "", err
	}

	var c opfContainer
	if err := xml.Unmarshal(raw, &c); err != nil {
		return "", fmt.Errorf("%w: bad container.xml: %v", ErrFormat, err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("%w: container.xml names no rootfile", ErrFormat)
	}

	return c.Rootfiles[0].FullPath, nil
}

func readEntry(byName map[string]*zip.File, name string) ([]byte, error) {
	f, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing entry %s", ErrFormat, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %v", ErrFormat, name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %v", ErrFormat, name, err)
	}

	return data, nil
}

// extractChapter recovers one chapter from its XHTML document. The
// generator meta tag picks between our own layout and the FanFicFare
// heuristics.
func extractChapter(fileID, xhtml string, now time.Time) book.Chapter {
	c := book.Chapter{
		Identifier:    fileID,
		DatePublished: now,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(xhtml))
	if err != nil {
		return c
	}

	c.Title = doc.Find("title").First().Text()
	c.URL = metaContent(doc, "chapterurl")

	if raw := metaContent(doc, "published"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			c.DatePublished = ts
		}
	}

	// RoyalRoad chapter URLs carry the chapter id as the fifth path
	// segment; fall back to the document filename.
	if id := chapterIDFromURL(c.URL); id != "" {
		c.Identifier = id
	}

	if metaContent(doc, "generator") == generatorName {
		c.Content = innerHTML(doc, "div.chapter-content")
		c.AuthorsNoteStart = innerHTML(doc, "div.authors-note-start")
		c.AuthorsNoteEnd = innerHTML(doc, "div.authors-note-end")
	} else {
		c.Content, c.AuthorsNoteStart, c.AuthorsNoteEnd = extractForeign(doc, c.Title)
	}

	return c
}

// extractForeign recovers content and notes from a FanFicFare chapter
// document. The last note container is the end note, the second-to-
// last the start note; the content is the body with the title heading
// and the notes substring-removed.
func extractForeign(doc *goquery.Document, title string) (content, noteStart, noteEnd *string) {
	notes := doc.Find(".author-note-portlet")
	n := notes.Length()
	if n > 0 {
		noteEnd = selectionHTML(notes.Eq(n - 1))
	}
	if n > 1 {
		noteStart = selectionHTML(notes.Eq(n - 2))
	}

	body, err := doc.Find("body").First().Html()
	if err != nil || strings.TrimSpace(body) == "" {
		return nil, noteStart, noteEnd
	}

	body = strings.ReplaceAll(body,
		fmt.Sprintf("<h3 class=\"fff_chapter_title\">%s</h3>", title), "")
	if noteStart != nil {
		body = strings.ReplaceAll(body, *noteStart, "")
	}
	if noteEnd != nil {
		body = strings.ReplaceAll(body, *noteEnd, "")
	}

	return &body, noteStart, noteEnd
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find("meta[name=" + name + "]").First().Attr("content")
	return content
}

func innerHTML(doc *goquery.Document, selector string) *string {
	return selectionHTML(doc.Find(selector).First())
}

func selectionHTML(s *goquery.Selection) *string {
	if s.Length() == 0 {
		return nil
	}
	html, err := s.Html()
	if err != nil || html == "" {
		return nil
	}
	return &html
}

func chapterIDFromURL(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) > 4 {
		return segs[4]
	}
	return ""
}
