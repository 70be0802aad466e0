// Package fingerprint holds the set of CNAME signatures that identify
// hosting providers whose unclaimed resources can be taken over.
package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned when a fingerprint source yields no usable entries
var ErrEmpty = errors.New("fingerprint set is empty")

// file mirrors the on-disk document: a single named list of substrings
type file struct {
	Fingerprints []string `json:"fingerprints" yaml:"fingerprints"`
}

// Set is an ordered, read-only collection of fingerprint substrings.
// It is safe for concurrent use once built.
type Set struct {
	items []string
}

// New builds a Set, dropping blank and duplicate entries while keeping order.
// A blank entry would match every target.
func New(items []string) *Set {
	seen := make(map[string]bool, len(items))
	s := &Set{items: make([]string, 0, len(items))}
	for _, item := range items {
		if strings.TrimSpace(item) == "" || seen[item] {
			continue
		}
		seen[item] = true
		s.items = append(s.items, item)
	}
	return s
}

// Load reads a fingerprint file. JSON is the default format; files ending in
// .yaml or .yml are decoded as YAML with the same "fingerprints" key.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprints: %w", err)
	}

	var f file
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse fingerprints %s: %w", path, err)
	}

	s := New(f.Fingerprints)
	if s.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return s, nil
}

// Len returns the number of fingerprints
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the fingerprints in load order
func (s *Set) Items() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.items...)
}

// Match returns the first fingerprint that is a literal, case-sensitive
// substring of target.
func (s *Set) Match(target string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, fp := range s.items {
		if strings.Contains(target, fp) {
			return fp, true
		}
	}
	return "", false
}

// Matches reports whether any fingerprint occurs in target
func (s *Set) Matches(target string) bool {
	_, ok := s.Match(target)
	return ok
}
