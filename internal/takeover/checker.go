package takeover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/axeq/takeoverme/internal/probe"
	"github.com/axeq/takeoverme/internal/resolver"
)

// ErrNotConfigured is returned by Check when a required collaborator is missing
var ErrNotConfigured = errors.New("checker is missing a prober, resolver or matcher")

// Prober reports whether a host answers over HTTP(S)
type Prober interface {
	Probe(ctx context.Context, host string) probe.Result
}

// Resolver looks up the CNAME of a host
type Resolver interface {
	ResolveCNAME(ctx context.Context, host string) resolver.Outcome
}

// Matcher returns the fingerprint found in a CNAME target, if any
type Matcher interface {
	Match(target string) (string, bool)
}

// Sink receives confirmed findings. Implementations must be safe for
// concurrent use.
type Sink interface {
	WriteFinding(f Finding) error
}

// Observer is notified of every evaluated subdomain, in completion order.
// Implementations must be safe for concurrent use.
type Observer interface {
	Observe(o Outcome)
}

// Result summarises a run. Total is the size of the input; TotalChecked
// counts only the subdomains admitted for evaluation.
type Result struct {
	Total        int           `json:"total"`
	TotalChecked int           `json:"total_checked"`
	Findings     []Finding     `json:"findings"`
	Active       int           `json:"active"`
	NotFound     int           `json:"not_found"`
	Unreachable  int           `json:"unreachable"`
	Interrupted  int           `json:"interrupted"`
	Failed       int           `json:"failed"`
	SinkErrors   int           `json:"sink_errors"`
	Duration     time.Duration `json:"duration"`
}

// Checker evaluates subdomains: probe, then on 404 resolve the CNAME, then
// match it against fingerprints. Sink and Observers may be set before Check.
type Checker struct {
	Prober    Prober
	Resolver  Resolver
	Matcher   Matcher
	Limiter   Limiter
	Sink      Sink
	Observers []Observer

	now func() time.Time
}

// NewChecker creates a Checker allowing at most concurrency evaluations at once
func NewChecker(p Prober, r Resolver, m Matcher, concurrency int) *Checker {
	return &Checker{
		Prober:   p,
		Resolver: r,
		Matcher:  m,
		Limiter:  NewLimiter(concurrency),
		now:      time.Now,
	}
}

// Check evaluates every subdomain under the limiter and waits for all of
// them. Once ctx is done no new evaluation starts; the rest are reported
// as interrupted.
func (c *Checker) Check(ctx context.Context, subdomains []string) (*Result, error) {
	if c.Prober == nil || c.Resolver == nil || c.Matcher == nil {
		return nil, ErrNotConfigured
	}
	limiter := c.Limiter
	if limiter == nil {
		limiter = NewLimiter(1)
	}

	start := time.Now()
	result := &Result{Total: len(subdomains), Findings: []Finding{}}
	if len(subdomains) == 0 {
		return result, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := func(o Outcome, admitted bool) {
		mu.Lock()
		if admitted {
			result.TotalChecked++
		}
		result.add(o)
		mu.Unlock()
		for _, obs := range c.Observers {
			obs.Observe(o)
		}
	}

	for _, sub := range subdomains {
		err := ctx.Err()
		if err == nil {
			err = limiter.Acquire(ctx)
		}
		if err != nil {
			done(Outcome{Subdomain: sub, Probe: probe.Result{Kind: probe.Interrupted, Err: err}}, false)
			continue
		}
		wg.Add(1)
		go func(sub string) {
			defer wg.Done()
			o := c.Evaluate(ctx, sub)
			// observers may be slow (storage); they must not hold a slot
			limiter.Release()
			done(o, true)
		}(sub)
	}
	wg.Wait()

	sort.Slice(result.Findings, func(i, j int) bool {
		return result.Findings[i].Subdomain < result.Findings[j].Subdomain
	})
	result.Duration = time.Since(start)
	return result, nil
}

// Evaluate runs the pipeline for one subdomain. It does not take a limiter
// slot and never panics: a panic is reported as Outcome.Err.
func (c *Checker) Evaluate(ctx context.Context, subdomain string) (o Outcome) {
	o.Subdomain = subdomain
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("evaluating %s: panic: %v", subdomain, r)
		}
	}()

	o.Probe = c.Prober.Probe(ctx, subdomain)
	if !o.Probe.NotFound() {
		return o
	}

	cname := c.Resolver.ResolveCNAME(ctx, subdomain)
	o.CNAME = &cname
	if cname.Kind != resolver.Resolved {
		return o
	}

	targets := cname.Targets
	if len(targets) == 0 {
		targets = []string{cname.Target}
	}
	for _, target := range targets {
		fp, ok := c.Matcher.Match(target)
		if !ok {
			continue
		}
		o.Finding = &Finding{
			Subdomain:   subdomain,
			CNAME:       target,
			Fingerprint: fp,
			Status:      http.StatusNotFound,
			Timestamp:   c.clock(),
		}
		if c.Sink != nil {
			o.SinkErr = c.Sink.WriteFinding(*o.Finding)
		}
		break
	}
	return o
}

func (c *Checker) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (r *Result) add(o Outcome) {
	switch o.State() {
	case StateFinding:
		r.Findings = append(r.Findings, *o.Finding)
	case StateActive:
		r.Active++
	case StateNotFound:
		r.NotFound++
	case StateUnreachable:
		r.Unreachable++
	case StateInterrupted:
		r.Interrupted++
	case StateFailed:
		r.Failed++
	}
	if o.SinkErr != nil {
		r.SinkErrors++
	}
}
