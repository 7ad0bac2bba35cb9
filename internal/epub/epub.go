// Package epub writes books as EPUB archives and parses them back.
// The archive is the durable record: a parsed book is the "current"
// state the next sync pass diffs against.
package epub

import (
	_ "embed"
	"errors"

	"github.com/brogergvhs/noveld/internal/util"
)

// generatorName tags chapter documents we wrote ourselves. Its
// presence selects the native extraction path on the way back in.
const generatorName = "noveld"

// ErrFormat wraps everything that makes an archive unreadable: missing
// entries, malformed container.xml or package document.
var ErrFormat = errors.New("malformed epub")

//go:embed stylesheet.css
var stylesheet []byte

type logger interface {
	Debugf(string, ...any)
	Warnf(string, ...any)
	Errorf(string, ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// OutputName derives the default archive filename from a book title.
func OutputName(title string) string {
	return util.SanitizeFilename(title) + ".epub"
}
