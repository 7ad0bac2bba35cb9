package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: uint8(x % 256), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected Format
	}{
		{"png", pngBytes(t, 2, 2), PNG},
		{"jpeg", jpegBytes(t, 2, 2), JPEG},
		{"webp", append([]byte("RIFF\x00\x00\x00\x00WEBP"), 0), WEBP},
		{"gif87a", []byte("GIF87a....."), GIF},
		{"gif89a", []byte("GIF89a....."), GIF},
		{"svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), SVG},
		{"svg with xml decl", []byte("<?xml version=\"1.0\"?><svg/>"), SVG},
		{"html doctype", []byte("<!DOCTYPE html>\n<html></html>"), HTML},
		{"html bare", []byte("  <HTML><body>404</body>"), HTML},
		{"garbage", []byte{0x00, 0x01, 0x02, 0x03}, Unknown},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Sniff(tc.data))
		})
	}
}

func TestResizeSmallPNGPassesThroughUntouched(t *testing.T) {
	in := pngBytes(t, 1, 1)

	out, err := Resize("https://example.com/dot.png", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResizeWideJPEGShrinksTo600(t *testing.T) {
	in := jpegBytes(t, 1200, 300)

	out, err := Resize("https://example.com/banner.jpg", in)
	require.NoError(t, err)
	assert.Equal(t, JPEG, Sniff(out))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestResizeWidePNGStaysPNG(t *testing.T) {
	out, err := Resize("u", pngBytes(t, 800, 200))
	require.NoError(t, err)
	assert.Equal(t, PNG, Sniff(out))
}

func TestResizeGIFPassesThrough(t *testing.T) {
	in := []byte("GIF89a\x01\x00\x01\x00...")

	out, err := Resize("https://example.com/anim.gif", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestResizeRejectsHTML(t *testing.T) {
	_, err := Resize("https://example.com/img.png", []byte("<!DOCTYPE html><html>not found</html>"))
	require.Error(t, err)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "https://example.com/img.png", fe.URL)
}

func TestResizeRejectsGarbage(t *testing.T) {
	_, err := Resize("u", []byte{0xde, 0xad, 0xbe, 0xef})
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestResizeIsDeterministic(t *testing.T) {
	in := jpegBytes(t, 900, 450)

	a, err := Resize("u", in)
	require.NoError(t, err)
	b, err := Resize("u", in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFileName(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://cdn.example.com/covers/large/cover.jpg", "cover.jpg"},
		{"https://cdn.example.com/a/img.png?width=200#frag", "img.png"},
		{"https://cdn.example.com/weird/na?me*2.png", "na"},
	}
	for _, tc := range testCases {
		got, err := FileName(tc.url)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, got)
	}

	_, err := FileName("https://cdn.example.com/")
	assert.Error(t, err)
}

func TestNamerDisambiguatesCollisions(t *testing.T) {
	n := NewNamer()

	a, err := n.Name("https://site/a/cover.jpg")
	require.NoError(t, err)
	b, err := n.Name("https://site/b/cover.jpg")
	require.NoError(t, err)
	c, err := n.Name("https://site/c/cover.jpg")
	require.NoError(t, err)

	assert.Equal(t, "cover.jpg", a)
	assert.Equal(t, "0_cover.jpg", b)
	assert.Equal(t, "1_cover.jpg", c)

	// repeated lookups are stable
	again, err := n.Name("https://site/b/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestExtractURLsKeepsDocumentOrder(t *testing.T) {
	html := `<p><img src="https://a/1.png"/></p><div><img src="https://a/2.png"/><img alt="no src"/></div>`
	assert.Equal(t, []string{"https://a/1.png", "https://a/2.png"}, ExtractURLs(html))
}

func TestRewriteURLs(t *testing.T) {
	html := `<img src="https://a/1.png"/> and <img src="https://a/2.png"/>`
	out := RewriteURLs(html, func(u string) string {
		if u == "https://a/1.png" {
			return "../images/1.png"
		}
		return ""
	})
	assert.Equal(t, `<img src="../images/1.png"/> and <img src="https://a/2.png"/>`, out)
}
