package cli

import (
	"context"
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progress draws an extraction bar. The zero value draws nothing.
type progress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func newProgress(ctx context.Context, w io.Writer, total int) *progress {
	if total == 0 {
		return &progress{}
	}
	p := mpb.NewWithContext(ctx, mpb.WithOutput(w), mpb.WithWidth(48))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Extracting: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
	return &progress{p: p, bar: bar}
}

// update is an Extractor progress callback.
func (pr *progress) update(done, _ int) {
	if pr.bar != nil {
		pr.bar.SetCurrent(int64(done))
	}
}

// finish waits for the bar to render its last frame. An incomplete bar is
// aborted so Wait does not block.
func (pr *progress) finish() {
	if pr.p == nil {
		return
	}
	if !pr.bar.Completed() {
		pr.bar.Abort(false)
	}
	pr.p.Wait()
}
