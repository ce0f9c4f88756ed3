package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/zsiec/avwrap/internal/pipeline"
)

// progressReporter draws the packets written so far. With a packet limit
// the bar has a known total, otherwise it spins.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer, mode string, limit int64) *progressReporter {
	total := int64(-1)
	if limit > 0 {
		total = limit
	}
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(mode),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("pkt"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &progressReporter{bar: bar}
}

func (p *progressReporter) update(s pipeline.Stats) {
	p.bar.Describe(s.Position.Truncate(time.Millisecond).String())
	_ = p.bar.Set64(s.PacketsWritten)
}

func (p *progressReporter) finish() {
	_ = p.bar.Finish()
}
