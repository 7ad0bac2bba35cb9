package ui

import "sync/atomic"

type Stats struct {
	TotalBooks    atomic.Int64
	UpdatedBooks  atomic.Int64
	TotalChapters atomic.Int64
	TotalErrors   atomic.Int64
}
