package sync

import "fmt"

// Kind tags the outcome of one sync pass.
type Kind int

const (
	// Unsupported means no adapter handles the book's source URL.
	Unsupported Kind = iota
	// UpToDate means nothing changed upstream.
	UpToDate
	// Updated carries the number of new or refreshed chapters.
	Updated
	// Skipped is reported by the external updater for books it refuses.
	Skipped
	// MoreChapterThanSource means the archive holds chapters the remote
	// index no longer lists, usually a stub swap or a wrong URL.
	MoreChapterThanSource
	// Failed wraps the error that aborted the pass.
	Failed
)

// Result is the single outcome of a sync pass. Count is exact for
// Updated and MoreChapterThanSource, Err is set only for Failed.
type Result struct {
	Kind  Kind
	Count uint16
	Err   error
}

func ResultUpToDate() Result    { return Result{Kind: UpToDate} }
func ResultUnsupported() Result { return Result{Kind: Unsupported} }
func ResultSkipped() Result     { return Result{Kind: Skipped} }

func ResultUpdated(n uint16) Result { return Result{Kind: Updated, Count: n} }

func ResultMoreChapterThanSource(n uint16) Result {
	return Result{Kind: MoreChapterThanSource, Count: n}
}

func ResultError(err error) Result { return Result{Kind: Failed, Err: err} }

func (r Result) String() string {
	switch r.Kind {
	case Unsupported:
		return "unsupported source"
	case UpToDate:
		return "up to date"
	case Updated:
		return fmt.Sprintf("updated (%d chapters)", r.Count)
	case Skipped:
		return "skipped"
	case MoreChapterThanSource:
		return fmt.Sprintf("%d more chapters than the source", r.Count)
	case Failed:
		return fmt.Sprintf("failed: %v", r.Err)
	default:
		return "unknown"
	}
}
