package updater

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	booksync "github.com/brogergvhs/noveld/internal/sync"
)

// External delegates books our own scrapers cannot handle to the
// FanFicFare command line tool, recognizing its outcome from a few
// fixed stdout/stderr message patterns.
type External struct {
	Command string
	Log     logger
}

const defaultExternalCommand = "fanficfare"

func (e *External) command() string {
	if e.Command == "" {
		return defaultExternalCommand
	}
	return e.Command
}

// Available reports whether the external tool is on PATH.
func (e *External) Available() bool {
	_, err := exec.LookPath(e.command())
	return err == nil
}

func (e *External) Update(ctx context.Context, path string) booksync.Result {
	log := e.Log
	if log == nil {
		log = noopLogger{}
	}

	cmd := exec.CommandContext(ctx, e.command(),
		"--non-interactive", "--update-epub", "--update-cover", path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return booksync.ResultError(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return booksync.ResultError(err)
	}
	if err := cmd.Start(); err != nil {
		return booksync.ResultError(err)
	}

	res := parseExternalOutput(io.MultiReader(stderr, stdout))

	// The tool's exit status is unreliable, the message patterns are
	// the actual contract.
	if err := cmd.Wait(); err != nil {
		log.Debugf("%s exited with %v\n", e.command(), err)
	}

	return res
}

var (
	externalUpdating  = regexp.MustCompile(`^Updating .*, URL: .*$`)
	externalUpToDate  = regexp.MustCompile(`^.* already contains \d+ chapters\.$`)
	externalDoUpdate  = regexp.MustCompile(`^Do update - epub\((\d+)\) vs url\((\d+)\)$`)
	externalMoreLocal = regexp.MustCompile(`^.* contains (\d+) chapters, more than source: (\d+)\.$`)
)

// parseExternalOutput scans the tool's output for the first line that
// decides the outcome. Unrecognized output means the tool did not
// understand the book either.
func parseExternalOutput(r io.Reader) booksync.Result {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if externalUpdating.MatchString(line) {
			continue
		}

		if externalUpToDate.MatchString(line) {
			return booksync.ResultUpToDate()
		}

		if m := externalDoUpdate.FindStringSubmatch(line); m != nil {
			inEpub, err1 := strconv.ParseUint(m[1], 10, 16)
			inURL, err2 := strconv.ParseUint(m[2], 10, 16)
			if err1 != nil || err2 != nil || inURL < inEpub {
				continue
			}
			return booksync.ResultUpdated(uint16(inURL - inEpub))
		}

		if m := externalMoreLocal.FindStringSubmatch(line); m != nil {
			inEpub, err1 := strconv.ParseUint(m[1], 10, 16)
			inURL, err2 := strconv.ParseUint(m[2], 10, 16)
			if err1 != nil || err2 != nil || inEpub < inURL {
				continue
			}
			return booksync.ResultMoreChapterThanSource(uint16(inEpub - inURL))
		}

		if strings.HasSuffix(line, " - Skipping") {
			return booksync.ResultSkipped()
		}
	}

	return booksync.ResultUnsupported()
}

// Updater dispatches one book to the native engine, falling back to
// the external tool for sources the native engine does not support.
type Updater struct {
	Native   *Native
	External *External
}

func (u *Updater) Update(ctx context.Context, path string) booksync.Result {
	res := u.Native.Update(ctx, path)
	if res.Kind == booksync.Unsupported && u.External != nil {
		return u.External.Update(ctx, path)
	}
	return res
}
