package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/axeq/takeoverme/internal/debug"
	"github.com/axeq/takeoverme/internal/takeover"
	"github.com/fatih/color"
)

// Console narrates a run. Findings and active domains are printed only in
// verbose mode; failures to record a finding are always printed.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	verbose bool

	red    *color.Color
	green  *color.Color
	yellow *color.Color
}

// NewConsole creates a console observer writing notices to out and
// warnings to errOut
func NewConsole(out, errOut io.Writer, verbose bool) *Console {
	return &Console{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		red:     color.New(color.FgRed, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow),
	}
}

// Observe prints the notice for one outcome
func (c *Console) Observe(o takeover.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.SinkErr != nil {
		c.yellow.Fprintf(c.errOut, "[!] %s: %v\n", o.Subdomain, o.SinkErr)
	}
	if o.Err != nil {
		c.yellow.Fprintf(c.errOut, "[!] %v\n", o.Err)
	}

	switch o.State() {
	case takeover.StateFinding:
		if c.verbose {
			c.red.Fprintln(c.out, o.Finding.String())
		}
	case takeover.StateActive:
		if c.verbose {
			col := c.yellow
			if o.Probe.Status < 400 {
				col = c.green
			}
			col.Fprintf(c.out, "ACTIVE DOMAIN: %s (Status: %d)\n", o.Subdomain, o.Probe.Status)
		}
	case takeover.StateNotFound:
		debug.Logf("pipeline", "%s: 404, CNAME %s", o.Subdomain, o.CNAME)
	case takeover.StateUnreachable:
		debug.Logf("pipeline", "%s: unreachable after %d attempts", o.Subdomain, o.Probe.Attempts)
	case takeover.StateInterrupted:
		debug.Logf("pipeline", "%s: interrupted", o.Subdomain)
	}
}

// Summary prints the end-of-run totals
func (c *Console) Summary(r *takeover.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(c.out)
	if r.TotalChecked < r.Total {
		cyan.Fprintf(c.out, "[*] Checked %d of %d subdomains in %s\n", r.TotalChecked, r.Total, r.Duration.Round(time.Millisecond))
	} else {
		cyan.Fprintf(c.out, "[*] Checked %d subdomains in %s\n", r.TotalChecked, r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(c.out, "    takeover candidates: %d\n", len(r.Findings))
	fmt.Fprintf(c.out, "    active: %d  not found (no match): %d  unreachable: %d\n", r.Active, r.NotFound, r.Unreachable)
	if r.Interrupted > 0 {
		c.yellow.Fprintf(c.out, "    interrupted: %d\n", r.Interrupted)
	}
	if r.Failed > 0 || r.SinkErrors > 0 {
		c.yellow.Fprintf(c.out, "    failed: %d  output errors: %d\n", r.Failed, r.SinkErrors)
	}
	for _, f := range r.Findings {
		c.red.Fprintf(c.out, "    %s\n", f.String())
	}
}
