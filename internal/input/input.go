// Package input reads the list of subdomains to check.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ErrEmpty is returned when the list has no usable entries
var ErrEmpty = errors.New("subdomain list is empty")

var labelRe = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_-]{0,61}[A-Za-z0-9_])?$`)

// Options control how the list is cleaned up. Both are off by default so
// every non-blank line is checked as given.
type Options struct {
	Dedupe        bool
	ValidateHosts bool
}

// List is the cleaned input
type List struct {
	Hosts      []string
	Duplicates int
	Rejected   []string
}

// ReadFile reads subdomains from path, one per line
func ReadFile(path string, opts Options) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subdomain list: %w", err)
	}
	defer f.Close()

	list, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, nil
}

// Read reads subdomains from r. Lines are trimmed; blank lines and lines
// starting with # are skipped.
func Read(r io.Reader, opts Options) (*List, error) {
	list := &List{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if opts.ValidateHosts && !ValidHostname(line) {
			list.Rejected = append(list.Rejected, line)
			continue
		}
		if opts.Dedupe {
			key := strings.ToLower(strings.TrimSuffix(line, "."))
			if seen[key] {
				list.Duplicates++
				continue
			}
			seen[key] = true
		}
		list.Hosts = append(list.Hosts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subdomain list: %w", err)
	}
	if len(list.Hosts) == 0 {
		return nil, ErrEmpty
	}
	return list, nil
}

// ValidHostname reports whether s is a syntactically valid hostname.
// Underscores are allowed since they are common in real DNS names.
func ValidHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if !labelRe.MatchString(label) {
			return false
		}
	}
	return true
}
