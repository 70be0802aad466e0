package runner

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/axeq/takeoverme/internal/config"
	"github.com/axeq/takeoverme/internal/debug"
	"github.com/axeq/takeoverme/internal/fingerprint"
	"github.com/axeq/takeoverme/internal/input"
	"github.com/axeq/takeoverme/internal/output"
	"github.com/axeq/takeoverme/internal/probe"
	"github.com/axeq/takeoverme/internal/ratelimit"
	"github.com/axeq/takeoverme/internal/resolver"
	"github.com/axeq/takeoverme/internal/storage"
	"github.com/axeq/takeoverme/internal/takeover"
	"github.com/axeq/takeoverme/internal/version"
	"github.com/fatih/color"
)

// Runner wires the configured collaborators together for one run.
// Prober and Resolver may be replaced before Run; nil means the network
// implementations built from the config.
type Runner struct {
	cfg *config.Config

	Prober   takeover.Prober
	Resolver takeover.Resolver
	Stdout   io.Writer
	Stderr   io.Writer

	limiter *ratelimit.RateLimiter
	runID   string
}

func New(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, Stdout: os.Stdout, Stderr: os.Stderr, runID: storage.GenerateRunID()}
}

// RunID returns the identifier used for persisted results
func (r *Runner) RunID() string {
	return r.runID
}

// Run loads the inputs, checks every subdomain and writes findings.
// Input and configuration problems are returned as errors; per-subdomain
// failures only show up in the result.
func (r *Runner) Run(ctx context.Context) (*takeover.Result, error) {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fps, err := fingerprint.Load(cfg.FingerprintsFile)
	if err != nil {
		return nil, err
	}
	list, err := input.ReadFile(cfg.ListFile, input.Options{Dedupe: cfg.Dedupe, ValidateHosts: cfg.ValidateHosts})
	if err != nil {
		return nil, err
	}
	r.reportInput(list, fps)

	if err := r.buildNetwork(); err != nil {
		return nil, err
	}

	out, err := output.NewManager(cfg, len(list.Hosts), r.Stdout, r.Stderr)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	var store *storage.SQLiteStorage
	var recorder *storage.Recorder
	if cfg.DBPath != "" {
		store, err = storage.NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		// run records are written even when ctx is already cancelled
		if err := store.CreateRun(context.WithoutCancel(ctx), r.runID, version.Version, cfg); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		recorder = storage.NewRecorder(store, r.runID)
		out.AddObserver(recorder)
	}

	checker := takeover.NewChecker(r.Prober, r.Resolver, fps, cfg.Threads)
	checker.Sink = out.Sink()
	checker.Observers = out.Observers()

	runCtx := ctx
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	result, err := checker.Check(runCtx, list.Hosts)
	if err != nil {
		return nil, err
	}
	if err := out.Close(); err != nil {
		fmt.Fprintf(r.Stderr, "Warning: closing output: %v\n", err)
	}

	if store != nil {
		status := storage.RunCompleted
		if result.Interrupted > 0 {
			status = storage.RunInterrupted
		}
		if err := store.CompleteRun(context.WithoutCancel(ctx), r.runID, status, result.TotalChecked, len(result.Findings)); err != nil {
			fmt.Fprintf(r.Stderr, "Warning: failed to complete run record: %v\n", err)
		}
		if n, err := recorder.Err(); n > 0 {
			fmt.Fprintf(r.Stderr, "Warning: %d results not saved to %s: %v\n", n, store.Path(), err)
		}
	}

	r.reportResult(out, result)
	return result, nil
}

func (r *Runner) buildNetwork() error {
	cfg := r.cfg
	if r.Prober == nil {
		r.limiter = ratelimit.New(cfg.RateLimit)
		ua := cfg.UserAgent
		if ua == "" {
			ua = version.UserAgent()
		}
		r.Prober = probe.New(probe.Options{
			Retries:     cfg.Retries,
			Timeout:     cfg.Timeout,
			RetryDelay:  cfg.RetryDelay,
			Schemes:     cfg.Schemes,
			Insecure:    cfg.Insecure,
			UserAgent:   ua,
			RateLimiter: r.limiter,
		})
	}
	if r.Resolver == nil {
		res, err := resolver.New(resolver.Options{
			Servers:   cfg.Resolvers,
			Timeout:   cfg.DNSTimeout,
			AllCNAMEs: cfg.AllCNAMEs,
		})
		if err != nil {
			return fmt.Errorf("failed to configure resolver: %w", err)
		}
		debug.Logf("dns", "nameservers: %v", res.Servers())
		r.Resolver = res
	}
	return nil
}

func (r *Runner) reportInput(list *input.List, fps *fingerprint.Set) {
	if r.cfg.Silent {
		return
	}
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprintf(r.Stdout, "[*] Loaded %d subdomains and %d fingerprints\n", len(list.Hosts), fps.Len())
	if list.Duplicates > 0 {
		yellow.Fprintf(r.Stdout, "[*] Skipped %d duplicate subdomains\n", list.Duplicates)
	}
	if len(list.Rejected) > 0 {
		yellow.Fprintf(r.Stdout, "[!] Skipped %d malformed hostnames\n", len(list.Rejected))
		for _, h := range list.Rejected {
			debug.Logf("input", "rejected %q", h)
		}
	}
}

func (r *Runner) reportResult(out *output.Manager, result *takeover.Result) {
	if !r.cfg.Silent {
		out.Console().Summary(result)
		if r.cfg.DBPath != "" {
			fmt.Fprintf(r.Stdout, "    run id: %s\n", r.runID)
		}
	}

	if summary := r.limiter.GetSummary(); summary.TotalRateLimited > 0 && (r.cfg.Verbose || r.cfg.Debug) {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(r.Stderr, "[!] %d hosts answered like a rate limiter or WAF; their status may hide a 404\n", len(summary.LimitedHosts))
		if r.cfg.Debug {
			fmt.Fprint(r.Stderr, summary.String())
		}
	}
	debug.Summary()
}
