package ui

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type MPBProgressManager struct {
	p *mpb.Progress
}

func NewProgressManager() *MPBProgressManager {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(os.Stdout),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &MPBProgressManager{p: p}
}

func (pm *MPBProgressManager) Close() {
	pm.p.Wait()
}

// Register creates a lazy per-book handle. The bar only appears once
// SetTotal reports work to do, so up-to-date books stay invisible.
func (pm *MPBProgressManager) Register(prefix string) *ProgressHandle {
	return &ProgressHandle{
		pm:     pm,
		prefix: prefix,
	}
}

type ProgressHandle struct {
	pm     *MPBProgressManager
	prefix string
	bar    *mpb.Bar

	total int64
	done  atomic.Int64

	start   time.Time
	elapsed atomic.Int64

	final atomic.Bool
}

func (h *ProgressHandle) initBar(total int) {
	h.start = time.Now()
	h.total = int64(total)

	h.bar = h.pm.p.New(
		int64(total),
		mpb.BarStyle().Rbound("]"),

		mpb.PrependDecorators(
			decor.Name(h.prefix+"  "),
		),

		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d chapters", decor.WCSyncWidth),

			decor.Any(func(_ decor.Statistics) string {
				if h.final.Load() {
					sec := h.elapsed.Load()
					return fmt.Sprintf(" | %ds", sec)
				}
				sec := time.Since(h.start).Seconds()

				return fmt.Sprintf(" | %ds", int(sec))
			}),
		),
	)
}

func (h *ProgressHandle) SetTotal(total int) {
	if h.final.Load() || total <= 0 {
		return
	}

	if h.bar == nil {
		h.initBar(total)
		return
	}
	h.total = int64(total)
	h.bar.SetTotal(int64(total), false)
}

func (h *ProgressHandle) Increment() {
	if h.bar == nil || h.final.Load() {
		return
	}

	done := h.done.Add(1)
	h.bar.SetCurrent(done)

	if done >= h.total {
		h.MarkDone()
	}
}

func (h *ProgressHandle) MarkDone() {
	if h.bar == nil || h.final.Swap(true) {
		return
	}

	elapsedSec := int64(time.Since(h.start).Seconds())

	h.elapsed.Store(elapsedSec)
	h.bar.SetCurrent(h.total)
	h.bar.SetTotal(h.total, true)
}
