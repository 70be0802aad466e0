package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the global request rate of the prober and tracks, per
// host, responses that look like rate limiting or WAF blocking. Such hosts
// report a status that says nothing about the service behind them.
// A nil *RateLimiter is valid and never waits.
type RateLimiter struct {
	mu sync.RWMutex

	limiter    *rate.Limiter // nil = unlimited
	hostStates map[string]*HostState

	wafPatterns []WAFPattern
}

// HostState tracks responses for a single host
type HostState struct {
	Host            string
	TotalRequests   int
	RateLimited     int
	LastStatus      int
	LastRateLimited time.Time
	WAFDetected     bool
	WAFName         string
}

// WAFPattern defines a header based WAF detection pattern
type WAFPattern struct {
	Name        string
	StatusCodes []int
	Headers     map[string]*regexp.Regexp
}

// New creates a rate limiter allowing rps requests per second across all
// hosts. rps <= 0 disables the global bound but keeps host tracking.
func New(rps int) *RateLimiter {
	rl := &RateLimiter{
		hostStates:  make(map[string]*HostState),
		wafPatterns: defaultWAFPatterns(),
	}
	if rps > 0 {
		rl.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return rl
}

func defaultWAFPatterns() []WAFPattern {
	return []WAFPattern{
		{
			Name:        "Cloudflare",
			StatusCodes: []int{403, 429, 503, 520, 521, 522, 523, 524},
			Headers: map[string]*regexp.Regexp{
				"server": regexp.MustCompile(`(?i)cloudflare`),
				"cf-ray": regexp.MustCompile(`.+`),
			},
		},
		{
			Name:        "AWS WAF",
			StatusCodes: []int{403, 429},
			Headers: map[string]*regexp.Regexp{
				"x-amzn-requestid": regexp.MustCompile(`.+`),
				"x-amz-cf-id":      regexp.MustCompile(`.+`),
			},
		},
		{
			Name:        "Akamai",
			StatusCodes: []int{403, 429, 503},
			Headers: map[string]*regexp.Regexp{
				"server":           regexp.MustCompile(`(?i)akamai`),
				"x-akamai-session": regexp.MustCompile(`.+`),
			},
		},
		{
			Name:        "Imperva/Incapsula",
			StatusCodes: []int{403, 429},
			Headers: map[string]*regexp.Regexp{
				"x-iinfo": regexp.MustCompile(`.+`),
			},
		},
		{
			Name:        "Generic Rate Limit",
			StatusCodes: []int{429, 503},
			Headers: map[string]*regexp.Regexp{
				"retry-after":           regexp.MustCompile(`.+`),
				"x-ratelimit-remaining": regexp.MustCompile(`^0$`),
			},
		},
	}
}

// Wait blocks until the global limiter admits one more request
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.limiter == nil {
		return ctx.Err()
	}
	return rl.limiter.Wait(ctx)
}

// RecordResponse records a response for host and reports whether it looked
// like rate limiting or a WAF block.
func (rl *RateLimiter) RecordResponse(host string, statusCode int, headers http.Header) *RateLimitEvent {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.hostStates[host]
	if !exists {
		state = &HostState{Host: host}
		rl.hostStates[host] = state
	}
	state.TotalRequests++
	state.LastStatus = statusCode

	limited, wafName := rl.detectRateLimit(statusCode, headers)
	if !limited {
		return nil
	}

	state.RateLimited++
	state.LastRateLimited = time.Now()
	if wafName != "" {
		state.WAFDetected = true
		state.WAFName = wafName
	}
	return &RateLimitEvent{
		Host:       host,
		StatusCode: statusCode,
		WAFName:    wafName,
		Reason:     fmt.Sprintf("status %d looks like rate limiting (%s)", statusCode, wafName),
	}
}

func (rl *RateLimiter) detectRateLimit(statusCode int, headers http.Header) (bool, string) {
	for _, pattern := range rl.wafPatterns {
		codeMatches := false
		for _, code := range pattern.StatusCodes {
			if statusCode == code {
				codeMatches = true
				break
			}
		}
		if codeMatches && matchesPattern(pattern, headers) {
			return true, pattern.Name
		}
	}
	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		return true, "Generic Rate Limit"
	}
	return false, ""
}

// matchesPattern needs at least one header match beyond the status code
func matchesPattern(pattern WAFPattern, headers http.Header) bool {
	for name, re := range pattern.Headers {
		if v := headers.Get(name); v != "" && re.MatchString(v) {
			return true
		}
	}
	return false
}

// GetState returns a copy of the state for a host
func (rl *RateLimiter) GetState(host string) *HostState {
	if rl == nil {
		return nil
	}
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, exists := rl.hostStates[host]; exists {
		copy := *state
		return &copy
	}
	return nil
}

// GetSummary returns a summary of rate limiting activity
func (rl *RateLimiter) GetSummary() *RateLimitSummary {
	summary := &RateLimitSummary{WAFsByName: make(map[string]int)}
	if rl == nil {
		return summary
	}
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	summary.TotalHosts = len(rl.hostStates)
	for _, state := range rl.hostStates {
		summary.TotalRequests += state.TotalRequests
		summary.TotalRateLimited += state.RateLimited
		if state.RateLimited > 0 {
			summary.LimitedHosts = append(summary.LimitedHosts, state.Host)
		}
		if state.WAFDetected {
			summary.WAFDetected++
			summary.WAFsByName[state.WAFName]++
		}
	}
	sort.Strings(summary.LimitedHosts)
	return summary
}

// RateLimitEvent describes a response that looked like rate limiting
type RateLimitEvent struct {
	Host       string
	StatusCode int
	WAFName    string
	Reason     string
}

// RateLimitSummary provides aggregate statistics
type RateLimitSummary struct {
	TotalHosts       int
	TotalRequests    int
	TotalRateLimited int
	WAFDetected      int
	LimitedHosts     []string
	WAFsByName       map[string]int
}

// String returns a formatted summary string
func (s *RateLimitSummary) String() string {
	var sb strings.Builder
	sb.WriteString("Rate Limit Summary:\n")
	sb.WriteString(fmt.Sprintf("  Total Hosts: %d\n", s.TotalHosts))
	sb.WriteString(fmt.Sprintf("  Total Responses: %d\n", s.TotalRequests))
	pct := 0.0
	if s.TotalRequests > 0 {
		pct = float64(s.TotalRateLimited) / float64(s.TotalRequests) * 100
	}
	sb.WriteString(fmt.Sprintf("  Rate Limited: %d (%.1f%%)\n", s.TotalRateLimited, pct))
	sb.WriteString(fmt.Sprintf("  WAF Detected: %d hosts\n", s.WAFDetected))

	if len(s.WAFsByName) > 0 {
		names := make([]string, 0, len(s.WAFsByName))
		for name := range s.WAFsByName {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("  WAFs Detected:\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("    - %s: %d hosts\n", name, s.WAFsByName[name]))
		}
	}
	return sb.String()
}
