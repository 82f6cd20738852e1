package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Bar is a thin wrapper around progressbar that can be disabled (nil-safe),
// so workers can always call Add without caring whether a terminal is
// attached.
type Bar struct {
	bar *progressbar.ProgressBar
}

func New(n int, description string, out io.Writer) *Bar {
	if out == nil {
		return &Bar{}
	}
	return &Bar{
		bar: progressbar.NewOptions(n,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(out),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (b *Bar) Add(n int) {
	if b == nil || b.bar == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil || b.bar == nil {
		return
	}
	_ = b.bar.Finish()
}
