// Package sanitize strips source-site styling and boilerplate from
// chapter HTML so it renders cleanly on e-readers and stays valid
// inside XHTML documents.
package sanitize

import (
	_ "embed"
	"regexp"
	"strings"
)

//go:embed messages.txt
var messagesFile string

// Exact lines some sites inject mid-chapter to flag scraped copies.
// Please do not use this tool to re-publish authors' works without
// their permission.
var boilerplate = func() []string {
	var lines []string
	for _, l := range strings.Split(messagesFile, "\n") {
		if l = strings.TrimRight(l, "\r"); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}()

var (
	fontFamilyMid  = regexp.MustCompile(`\s*font-family:[^;"]*(?:;\s*|("))`)
	fontFamilyEnd  = regexp.MustCompile(`font-family:[^;"]*"`)
	fontWeightNorm = regexp.MustCompile(`font-weight:\s?normal`)
	fontWeight400  = regexp.MustCompile(`font-weight:\s?400`)
	classAttr      = regexp.MustCompile(` class="[^"]*"`)
	openImg        = regexp.MustCompile(`(<img[^>]*[^/])>`)
	emptyParagraph = regexp.MustCompile(`<p[^>]*>\s*</p>`)
	overflowAuto   = regexp.MustCompile(`overflow:\s?auto`)
)

// Clean is applied to chapter content and author notes alike. It is
// idempotent: cleaning already-clean html is a no-op.
func Clean(html string) string {
	s := fontFamilyMid.ReplaceAllString(html, "$1")
	s = fontFamilyEnd.ReplaceAllString(s, `"`)

	s = fontWeightNorm.ReplaceAllString(s, "")
	s = fontWeight400.ReplaceAllString(s, "")

	// class attributes carry per-render obfuscation fingerprints
	s = classAttr.ReplaceAllString(s, "")

	// self-close void tags so the fragment embeds into xhtml
	s = openImg.ReplaceAllString(s, "${1}/>")
	s = strings.ReplaceAll(s, "<br>", "<br/>")
	s = strings.ReplaceAll(s, "<hr>", "<hr/>")

	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = emptyParagraph.ReplaceAllString(s, "")

	s = overflowAuto.ReplaceAllString(s, "")

	for _, line := range boilerplate {
		s = strings.ReplaceAll(s, line, "")
	}

	return s
}
