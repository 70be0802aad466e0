package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/axeq/takeoverme/internal/takeover"
	"github.com/schollz/progressbar/v3"
)

// Progress renders a progress bar advanced once per evaluated subdomain
type Progress struct {
	bar      *progressbar.ProgressBar
	findings int32
}

// NewProgress creates a bar for total subdomains
func NewProgress(total int, w io.Writer) *Progress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetDescription("Probing subdomains..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	return &Progress{bar: bar}
}

// Observe advances the bar
func (p *Progress) Observe(o takeover.Outcome) {
	if o.Finding != nil {
		n := atomic.AddInt32(&p.findings, 1)
		p.bar.Describe(fmt.Sprintf("Probing subdomains... [red]%d found[reset]", n))
	}
	p.bar.Add(1)
}

// Findings returns the number of findings seen so far
func (p *Progress) Findings() int {
	return int(atomic.LoadInt32(&p.findings))
}

// Finish completes the bar
func (p *Progress) Finish() error {
	return p.bar.Finish()
}
