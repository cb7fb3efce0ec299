package runner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressConfig controls the batch progress bar.
type ProgressConfig struct {
	Enabled bool
	Writer  io.Writer // defaults to os.Stderr
}

// progress draws one bar per batch. The zero value and a disabled
// progress do nothing.
type progress struct {
	container *mpb.Progress
	bar       *mpb.Bar
	failed    atomic.Int64

	mu   sync.Mutex
	last time.Time
}

func newProgress(cfg ProgressConfig, total int, label string) *progress {
	if !cfg.Enabled || total == 0 {
		return &progress{}
	}
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	p := &progress{last: time.Now()}
	p.container = mpb.New(
		mpb.WithOutput(writer),
		// mpb only refreshes on its own when writing to a terminal.
		mpb.WithAutoRefresh(),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	p.bar = p.container.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(label+" ", decor.WC{W: len(label) + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("(%d/%d)", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.NewPercentage("%.1f", decor.WCSyncSpace),
			decor.Any(func(decor.Statistics) string {
				if n := p.failed.Load(); n > 0 {
					return fmt.Sprintf(" %d failed", n)
				}
				return ""
			}),
			decor.OnComplete(
				decor.EwmaETA(decor.ET_STYLE_GO, 30, decor.WCSyncWidth), " done",
			),
		),
	)
	return p
}

// done records one finished prompt. The EWMA decorators are fed the time
// since the previous prompt finished.
func (p *progress) done(err error) {
	if p.bar == nil {
		return
	}
	if err != nil {
		p.failed.Add(1)
	}
	p.mu.Lock()
	now := time.Now()
	step := now.Sub(p.last)
	p.last = now
	p.mu.Unlock()
	p.bar.EwmaIncrement(step)
}

// finish completes the bar even when the batch stopped early and waits
// for the final render.
func (p *progress) finish() {
	if p.bar == nil {
		return
	}
	p.bar.SetTotal(p.bar.Current(), true)
	p.container.Wait()
}

// IsTTY reports whether writer is a terminal.
func IsTTY(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// ShouldShowProgress shows the bar when forced or when stderr is a terminal.
func ShouldShowProgress(forced bool) bool {
	return forced || IsTTY(os.Stderr)
}
