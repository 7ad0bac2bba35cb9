package epub

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/brogergvhs/noveld/internal/book"
	"github.com/brogergvhs/noveld/internal/cache"
	"github.com/brogergvhs/noveld/internal/fetch"
	"github.com/brogergvhs/noveld/internal/images"
	"github.com/brogergvhs/noveld/internal/sanitize"
)

// Writer assembles a book into an EPUB archive. Inline images go
// through the fetch layer and the per-book cache so repeated syncs do
// not redownload them.
type Writer struct {
	Fetch *fetch.Client
	Cache *cache.Cache
	Log   logger
}

type imageFile struct {
	name string
	data []byte
}

// Write materializes b at path. The archive is written to <path>.part
// first and renamed once complete, so an interrupt never leaves a
// half-written epub behind.
func (w *Writer) Write(ctx context.Context, b book.Book, path string) (err error) {
	log := w.Log
	if log == nil {
		log = noopLogger{}
	}

	namer := images.NewNamer()
	urls := collectImageURLs(b)
	for _, u := range urls {
		if _, nameErr := namer.Name(u); nameErr != nil {
			log.Warnf("skipping image: %v\n", nameErr)
		}
	}

	// Fetch everything up front, the manifest lists only what we got.
	var files []imageFile
	for _, u := range urls {
		name, ok := namer.Lookup(u)
		if !ok {
			continue
		}
		data, imgErr := w.fetchImage(ctx, b.ID, u, name)
		if imgErr != nil {
			// A broken img reference beats a failed book.
			log.Warnf("skipping image %s: %v\n", u, imgErr)
			continue
		}
		files = append(files, imageFile{name: name, data: data})
	}

	coverName := ""
	if b.CoverURL != "" {
		coverName, _ = namer.Lookup(b.CoverURL)
	}

	resolve := func(u string) string {
		if name, ok := namer.Lookup(u); ok {
			return "../images/" + name
		}
		return ""
	}

	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(part)
		}
	}()

	zw := zip.NewWriter(f)

	// The mimetype entry must come first and must be stored, readers
	// identify the container by the raw bytes at a fixed offset.
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	if _, err = mt.Write([]byte("application/epub+zip")); err != nil {
		return fmt.Errorf("epub: %w", err)
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"META-INF/container.xml", containerXML()},
		{"OEBPS/content.opf", contentOPF(b, files, coverName)},
		{"OEBPS/toc.ncx", tocNCX(b)},
		{"OEBPS/nav.xhtml", navXHTML(b)},
	}
	for _, c := range b.Chapters {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/text/" + c.Identifier + ".xhtml", chapterXHTML(c, resolve)})
	}
	entries = append(entries, struct {
		name string
		data []byte
	}{"OEBPS/text/title.xhtml", titleXHTML(b, coverName)})
	for _, img := range files {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/images/" + img.name, img.data})
	}
	entries = append(entries, struct {
		name string
		data []byte
	}{"OEBPS/styles/stylesheet.css", stylesheet})

	for _, e := range entries {
		var ew io.Writer
		if ew, err = zw.Create(e.name); err != nil {
			return fmt.Errorf("epub: %w", err)
		}
		if _, err = ew.Write(e.data); err != nil {
			return fmt.Errorf("epub: %w", err)
		}
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("epub: %w", err)
	}
	if err = os.Rename(part, path); err != nil {
		return fmt.Errorf("epub: %w", err)
	}

	log.Debugf("wrote %s (%d chapters, %d images)\n", path, len(b.Chapters), len(files))
	return nil
}

// collectImageURLs returns the cover plus every inline image in
// first-seen document order, deduplicated.
func collectImageURLs(b book.Book) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	add(b.CoverURL)
	for _, c := range b.Chapters {
		for _, frag := range []*string{c.AuthorsNoteStart, c.Content, c.AuthorsNoteEnd} {
			if frag == nil {
				continue
			}
			for _, u := range images.ExtractURLs(*frag) {
				add(u)
			}
		}
	}

	return urls
}

func (w *Writer) fetchImage(ctx context.Context, bookID, url, name string) ([]byte, error) {
	if w.Cache != nil {
		if data, ok, _ := w.Cache.ReadImage(bookID, name); ok {
			return data, nil
		}
	}

	raw, err := w.Fetch.GetBytes(ctx, url)
	if err != nil {
		return nil, err
	}

	data, err := images.Resize(url, raw)
	if err != nil {
		return nil, err
	}

	if w.Cache != nil {
		if err := w.Cache.WriteImage(bookID, name, data); err != nil {
			return nil, err
		}
	}

	return data, nil
}

func esc(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func containerXML() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`)
}

func contentOPF(b book.Book, files []imageFile, coverName string) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", esc(b.Title))
	fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", esc(b.Author))
	fmt.Fprintf(&sb, "    <dc:source>%s</dc:source>\n", esc(b.URL))
	fmt.Fprintf(&sb, "    <dc:description>%s</dc:description>\n", esc(b.Description))
	fmt.Fprintf(&sb, "    <dc:date>%s</dc:date>\n", b.DatePublished.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "    <dc:identifier id=\"bookid\">%s</dc:identifier>\n", esc(b.ID))
	sb.WriteString("    <dc:language>en</dc:language>\n")
	if coverName != "" {
		fmt.Fprintf(&sb, "    <meta name=\"cover\" content=\"%s\"/>\n", esc(coverName))
	}
	fmt.Fprintf(&sb, "    <meta name=\"generator\" content=\"%s\"/>\n", generatorName)
	sb.WriteString(`  </metadata>
  <manifest>
    <item id="title" href="text/title.xhtml" media-type="application/xhtml+xml"/>
    <item id="stylesheet" href="styles/stylesheet.css" media-type="text/css"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
`)
	for _, img := range files {
		fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"images/%s\" media-type=\"%s\"/>\n",
			esc(img.name), esc(img.name), images.Sniff(img.data).MediaType())
	}
	for _, c := range b.Chapters {
		fmt.Fprintf(&sb, "    <item id=\"%s\" href=\"text/%s.xhtml\" media-type=\"application/xhtml+xml\"/>\n",
			esc(c.Identifier), esc(c.Identifier))
	}
	sb.WriteString(`  </manifest>
  <spine toc="ncx">
    <itemref idref="title"/>
`)
	for _, c := range b.Chapters {
		fmt.Fprintf(&sb, "    <itemref idref=\"%s\"/>\n", esc(c.Identifier))
	}
	sb.WriteString(`  </spine>
</package>
`)
	return []byte(sb.String())
}

func tocNCX(b book.Book) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
`)
	fmt.Fprintf(&sb, "    <meta name=\"dtb:uid\" content=\"%s\"/>\n", esc(b.ID))
	sb.WriteString(`    <meta name="dtb:depth" content="2"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
`)
	fmt.Fprintf(&sb, "  <docTitle><text>%s</text></docTitle>\n", esc(b.Title))
	sb.WriteString(`  <navMap>
    <navPoint id="cover" playOrder="0">
      <navLabel><text>Cover</text></navLabel>
      <content src="text/title.xhtml"/>
    </navPoint>
`)
	for i, c := range b.Chapters {
		fmt.Fprintf(&sb, `    <navPoint id="%s" playOrder="%d">
      <navLabel><text>%s</text></navLabel>
      <content src="text/%s.xhtml"/>
    </navPoint>
`, esc(c.Identifier), i+1, esc(c.Title), esc(c.Identifier))
	}
	sb.WriteString("  </navMap>\n</ncx>\n")
	return []byte(sb.String())
}

func navXHTML(b book.Book) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
`)
	fmt.Fprintf(&sb, "  <title>%s</title>\n", esc(b.Title))
	sb.WriteString(`</head>
<body>
  <nav epub:type="toc">
    <ol>
      <li><a href="text/title.xhtml">Cover</a></li>
`)
	for _, c := range b.Chapters {
		fmt.Fprintf(&sb, "      <li><a href=\"text/%s.xhtml\">%s</a></li>\n",
			esc(c.Identifier), esc(c.Title))
	}
	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)
	return []byte(sb.String())
}

// chapterXHTML renders one chapter document. The meta tags carry the
// source URL, publish date and generator marker that make the archive
// self-describing for the parse path.
func chapterXHTML(c book.Chapter, resolve func(string) string) []byte {
	clean := func(frag *string) string {
		if frag == nil {
			return ""
		}
		return images.RewriteURLs(sanitize.Clean(*frag), resolve)
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en">
<head>
`)
	fmt.Fprintf(&sb, "  <title>%s</title>\n", esc(c.Title))
	fmt.Fprintf(&sb, "  <meta name=\"generator\" content=\"%s\"/>\n", generatorName)
	fmt.Fprintf(&sb, "  <meta name=\"chapterurl\" content=\"%s\"/>\n", esc(c.URL))
	fmt.Fprintf(&sb, "  <meta name=\"published\" content=\"%s\"/>\n", c.DatePublished.UTC().Format(time.RFC3339))
	sb.WriteString(`  <link href="../styles/stylesheet.css" rel="stylesheet" type="text/css"/>
</head>
<body>
`)
	fmt.Fprintf(&sb, "  <h1 class=\"chapter-title\">%s</h1>\n", esc(c.Title))
	if note := clean(c.AuthorsNoteStart); note != "" {
		fmt.Fprintf(&sb, "  <div class=\"authors-note-start\">%s</div>\n", note)
	}
	fmt.Fprintf(&sb, "  <div class=\"chapter-content\">%s</div>\n", clean(c.Content))
	if note := clean(c.AuthorsNoteEnd); note != "" {
		fmt.Fprintf(&sb, "  <div class=\"authors-note-end\">%s</div>\n", note)
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}

func titleXHTML(b book.Book, coverName string) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
`)
	fmt.Fprintf(&sb, "  <title>%s</title>\n", esc(b.Title))
	sb.WriteString(`  <link href="../styles/stylesheet.css" rel="stylesheet" type="text/css"/>
</head>
<body>
`)
	if coverName != "" {
		fmt.Fprintf(&sb, "  <img src=\"../images/%s\" alt=\"Cover\" class=\"cover\"/>\n", esc(coverName))
	}
	fmt.Fprintf(&sb, "  <h1 class=\"title\">%s</h1>\n", esc(b.Title))
	fmt.Fprintf(&sb, "  <h2 class=\"author\">%s</h2>\n", esc(b.Author))
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}
