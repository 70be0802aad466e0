package debug

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	enabled bool
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	stats             = map[string]*Stat{}
)

// Stat aggregates timings for one component (probe, dns, ...)
type Stat struct {
	Component string        `json:"component"`
	Calls     int           `json:"calls"`
	Errors    int           `json:"errors"`
	Total     time.Duration `json:"total"`
	Max       time.Duration `json:"max"`
}

// Enable turns on debug logging
func Enable() {
	mu.Lock()
	enabled = true
	mu.Unlock()
}

// Disable turns off debug logging and clears collected stats
func Disable() {
	mu.Lock()
	enabled = false
	stats = map[string]*Stat{}
	mu.Unlock()
}

// IsEnabled returns whether debug logging is enabled
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetOutput redirects debug output, mainly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// Logf prints a timestamped debug line for a component
func Logf(component, format string, args ...interface{}) {
	if !IsEnabled() {
		return
	}
	gray := color.New(color.FgHiBlack)
	mu.Lock()
	defer mu.Unlock()
	gray.Fprintf(out, "    [DEBUG %s] %s: %s\n", time.Now().Format("15:04:05.000"), component, fmt.Sprintf(format, args...))
}

// Record accumulates the duration of one call made by a component
func Record(component string, d time.Duration, err error) {
	if !IsEnabled() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	s, ok := stats[component]
	if !ok {
		s = &Stat{Component: component}
		stats[component] = s
	}
	s.Calls++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
	if err != nil {
		s.Errors++
	}
}

// Stats returns a copy of the collected stats, sorted by component
func Stats() []Stat {
	mu.Lock()
	defer mu.Unlock()
	result := make([]Stat, 0, len(stats))
	for _, s := range stats {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Component < result[j].Component })
	return result
}

// Summary prints a summary of all recorded calls
func Summary() {
	if !IsEnabled() {
		return
	}
	all := Stats()
	if len(all) == 0 {
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out)
	cyan.Fprintln(out, "═══════════════════════════════════════════════════════")
	cyan.Fprintln(out, "                    DEBUG SUMMARY")
	cyan.Fprintln(out, "═══════════════════════════════════════════════════════")
	for _, s := range all {
		avg := time.Duration(0)
		if s.Calls > 0 {
			avg = s.Total / time.Duration(s.Calls)
		}
		fmt.Fprintf(out, "  %-10s calls: %-6d errors: %-6d avg: %-10s max: %s\n",
			s.Component, s.Calls, s.Errors, avg.Round(time.Millisecond), s.Max.Round(time.Millisecond))
	}
	cyan.Fprintln(out, "═══════════════════════════════════════════════════════")
}
