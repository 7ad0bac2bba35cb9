package updater

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	booksync "github.com/brogergvhs/noveld/internal/sync"
)

func TestParseExternalOutput(t *testing.T) {
	testCases := []struct {
		name     string
		output   string
		expected booksync.Result
	}{
		{
			name:     "up to date",
			output:   "some_book.epub already contains 120 chapters.\n",
			expected: booksync.ResultUpToDate(),
		},
		{
			name:     "updated",
			output:   "Do update - epub(100) vs url(104)\n",
			expected: booksync.ResultUpdated(4),
		},
		{
			name: "updating lines are ignored",
			output: "Updating some_book.epub, URL: https://example.com/s/1\n" +
				"Do update - epub(10) vs url(11)\n",
			expected: booksync.ResultUpdated(1),
		},
		{
			name:     "more chapters than source",
			output:   "some_book.epub contains 130 chapters, more than source: 125.\n",
			expected: booksync.ResultMoreChapterThanSource(5),
		},
		{
			name:     "skipped",
			output:   "some_book.epub by request - Skipping\n",
			expected: booksync.ResultSkipped(),
		},
		{
			name:     "garbage means unsupported",
			output:   "Traceback (most recent call last):\n  something broke\n",
			expected: booksync.ResultUnsupported(),
		},
		{
			name:     "empty output means unsupported",
			output:   "",
			expected: booksync.ResultUnsupported(),
		},
		{
			name:     "first decisive line wins",
			output:   "Do update - epub(1) vs url(3)\nbook.epub already contains 3 chapters.\n",
			expected: booksync.ResultUpdated(2),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseExternalOutput(strings.NewReader(tc.output))
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "updated (3 chapters)", booksync.ResultUpdated(3).String())
	assert.Equal(t, "up to date", booksync.ResultUpToDate().String())
	assert.Equal(t, "unsupported source", booksync.ResultUnsupported().String())
}
