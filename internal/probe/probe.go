// Package probe checks whether a host answers over HTTP(S) and with which
// status code.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/axeq/takeoverme/internal/debug"
	"github.com/axeq/takeoverme/internal/ratelimit"
)

// maxDrain bounds how much of a body is read so the connection can be reused
const maxDrain = 64 << 10

// Kind classifies a probe result
type Kind int

const (
	// StatusCode means a response was observed; Result.Status holds its code
	StatusCode Kind = iota
	// Unreachable means every attempt over every scheme failed
	Unreachable
	// Interrupted means the caller's context ended before a response
	Interrupted
)

func (k Kind) String() string {
	switch k {
	case StatusCode:
		return "status"
	case Unreachable:
		return "unreachable"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is the outcome of probing one host
type Result struct {
	Kind     Kind
	Status   int
	Scheme   string
	Attempts int
	Err      error // last attempt error when no response was observed
}

// NotFound reports whether the host answered with HTTP 404
func (r Result) NotFound() bool {
	return r.Kind == StatusCode && r.Status == http.StatusNotFound
}

func (r Result) String() string {
	if r.Kind == StatusCode {
		return fmt.Sprintf("%d (%s)", r.Status, r.Scheme)
	}
	return r.Kind.String()
}

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Prober
type Options struct {
	Retries     int
	Timeout     time.Duration // per attempt
	RetryDelay  time.Duration // pause between rounds of attempts
	Schemes     []string      // tried in order within each round
	Insecure    bool          // skip TLS certificate verification
	UserAgent   string
	RateLimiter *ratelimit.RateLimiter
}

// DefaultOptions returns 3 rounds of https then http, 5s per attempt
func DefaultOptions() Options {
	return Options{
		Retries:    3,
		Timeout:    5 * time.Second,
		RetryDelay: time.Second,
		Schemes:    []string{"https", "http"},
	}
}

// Prober fetches hosts with bounded retries and scheme fallback.
// It is safe for concurrent use.
type Prober struct {
	client Doer
	opts   Options
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Prober with its own HTTP client
func New(opts Options) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return NewWithClient(&http.Client{Transport: transport}, opts)
}

// NewWithClient creates a Prober that sends requests through client
func NewWithClient(client Doer, opts Options) *Prober {
	defaults := DefaultOptions()
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if len(opts.Schemes) == 0 {
		opts.Schemes = defaults.Schemes
	}
	return &Prober{client: client, opts: opts, sleep: sleepContext}
}

// MaxAttempts is the upper bound of requests a single Probe call makes
func (p *Prober) MaxAttempts() int {
	return p.opts.Retries * len(p.opts.Schemes)
}

// Probe tries every scheme in order, for up to Retries rounds, and returns
// the first response observed whatever its status code.
func (p *Prober) Probe(ctx context.Context, host string) Result {
	var lastErr error
	attempts := 0

	for round := 1; round <= p.opts.Retries; round++ {
		for _, scheme := range p.opts.Schemes {
			if err := ctx.Err(); err != nil {
				return Result{Kind: Interrupted, Attempts: attempts, Err: err}
			}
			attempts++
			status, err := p.attempt(ctx, scheme, host)
			if err == nil {
				return Result{Kind: StatusCode, Status: status, Scheme: scheme, Attempts: attempts}
			}
			lastErr = err
		}
		if round < p.opts.Retries {
			if err := p.sleep(ctx, p.opts.RetryDelay); err != nil {
				return Result{Kind: Interrupted, Attempts: attempts, Err: err}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{Kind: Interrupted, Attempts: attempts, Err: err}
	}
	return Result{Kind: Unreachable, Attempts: attempts, Err: lastErr}
}

// attempt makes one request; any error means "try the next option"
func (p *Prober) attempt(ctx context.Context, scheme, host string) (int, error) {
	if err := p.opts.RateLimiter.Wait(ctx); err != nil {
		return 0, err
	}

	actx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	url := scheme + "://" + host
	req, err := http.NewRequestWithContext(actx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if p.opts.UserAgent != "" {
		req.Header.Set("User-Agent", p.opts.UserAgent)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	debug.Record("probe", time.Since(start), err)
	if err != nil {
		debug.Logf("probe", "%s failed: %v", url, err)
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if ev := p.opts.RateLimiter.RecordResponse(host, resp.StatusCode, resp.Header); ev != nil {
		debug.Logf("probe", "%s: %s", host, ev.Reason)
	}
	debug.Logf("probe", "%s -> %d", url, resp.StatusCode)
	return resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
