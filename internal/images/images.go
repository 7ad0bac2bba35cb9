// Package images handles inline chapter images: format sniffing from
// magic bytes, resizing for e-reader screens and the url to manifest
// filename mapping.
package images

import (
	"bytes"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"github.com/brogergvhs/noveld/internal/util"
)

// maxWidth is the widest an inline image is allowed to be. E-reader
// screens rarely exceed it and oversized scans dominate archive size.
const maxWidth = 600

type Format int

const (
	Unknown Format = iota
	PNG
	JPEG
	WEBP
	GIF
	SVG
	HTML
)

// FormatError reports bytes that cannot be embedded as an image. URL is
// kept for diagnostics, wrong bytes usually mean the remote served an
// error page.
type FormatError struct {
	URL    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s (URL: %s)", e.Reason, e.URL)
}

// Sniff identifies the format from magic bytes only. URL extensions lie
// too often to be trusted.
func Sniff(b []byte) Format {
	switch {
	case len(b) > 8 && bytes.Equal(b[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return PNG
	case len(b) > 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return JPEG
	case len(b) > 11 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return WEBP
	case len(b) > 5 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a"))):
		return GIF
	}

	text := strings.ToLower(strings.TrimSpace(string(b)))
	switch {
	case strings.HasPrefix(text, "<?xml"), strings.HasPrefix(text, "<svg"):
		return SVG
	case strings.HasPrefix(text, "<!doctype html"), strings.HasPrefix(text, "<html"):
		return HTML
	}

	return Unknown
}

// MediaType returns the manifest media-type for a sniffed format.
func (f Format) MediaType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case WEBP:
		return "image/webp"
	case GIF:
		return "image/gif"
	case SVG:
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// Resize applies the format policy to raw image bytes fetched from
// srcURL (only used for error messages):
//
//   - HTML or unrecognized bytes are rejected,
//   - GIF and SVG pass through untouched (animation/vectors survive),
//   - PNG and JPEG wider than 600px are downscaled, narrower ones pass
//     through byte-identical,
//   - WEBP is always re-encoded as PNG since many e-readers cannot
//     render it.
//
// The result only depends on the input bytes.
func Resize(srcURL string, raw []byte) ([]byte, error) {
	switch Sniff(raw) {
	case HTML:
		return nil, &FormatError{URL: srcURL, Reason: "got an html page instead of an image"}
	case Unknown:
		return nil, &FormatError{URL: srcURL, Reason: "unsupported inline image format"}
	case GIF, SVG:
		return raw, nil
	case WEBP:
		img, err := webp.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, &FormatError{URL: srcURL, Reason: fmt.Sprintf("broken webp: %v", err)}
		}
		return encode(shrink(img), imaging.PNG)
	default: // PNG, JPEG
		img, err := imaging.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, &FormatError{URL: srcURL, Reason: fmt.Sprintf("broken image: %v", err)}
		}
		if img.Bounds().Dx() <= maxWidth {
			return raw, nil
		}
		if Sniff(raw) == JPEG {
			return encode(shrink(img), imaging.JPEG, imaging.JPEGQuality(80))
		}
		return encode(shrink(img), imaging.PNG)
	}
}

func shrink(img image.Image) image.Image {
	if img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

func encode(img image.Image, f imaging.Format, opts ...imaging.EncodeOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, opts...); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName derives the archive filename from the last path segment of
// the image URL, dropping query and fragment.
func FileName(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("bad image url %q: %w", rawurl, err)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segs[len(segs)-1]
	if last == "" {
		return "", fmt.Errorf("image url %q has no filename", rawurl)
	}

	return util.SanitizeFilename(last), nil
}

// ExtractURLs returns the img sources of an html fragment in document
// order.
func ExtractURLs(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			urls = append(urls, src)
		}
	})

	return urls
}

// RewriteURLs replaces every img src with the path resolve maps it to.
// URLs resolve rejects (empty result) are left alone.
func RewriteURLs(html string, resolve func(url string) string) string {
	for _, src := range ExtractURLs(html) {
		if path := resolve(src); path != "" {
			html = strings.ReplaceAll(html, src, path)
		}
	}
	return html
}

// Namer assigns manifest filenames to image URLs. The first URL to
// claim a name keeps it bare, later collisions get an incrementing
// integer prefix in first-seen order.
type Namer struct {
	byURL map[string]string
	taken map[string]bool
	next  int
}

func NewNamer() *Namer {
	return &Namer{
		byURL: make(map[string]string),
		taken: make(map[string]bool),
	}
}

func (n *Namer) Name(rawurl string) (string, error) {
	if name, ok := n.byURL[rawurl]; ok {
		return name, nil
	}

	name, err := FileName(rawurl)
	if err != nil {
		return "", err
	}

	if n.taken[name] {
		name = fmt.Sprintf("%d_%s", n.next, name)
		n.next++
	}

	n.byURL[rawurl] = name
	n.taken[name] = true
	return name, nil
}

// Lookup returns the already-assigned name for a URL, if any.
func (n *Namer) Lookup(rawurl string) (string, bool) {
	name, ok := n.byURL[rawurl]
	return name, ok
}
