package util

import "strings"

// Covers every character rejected by at least one target filesystem,
// plus '%', '[' and ']' which break hrefs inside epub readers.
var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	"%", "_",
	"[", "_",
	"]", "_",
)

func SanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}
