package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/axeq/takeoverme/internal/takeover"
)

// FileSink appends one line per finding to a text file.
// Writes are serialised, so one FileSink can be shared by every evaluation.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewFileSink opens path for appending, creating it and its directory if needed
func NewFileSink(path string) (*FileSink, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, path: path}, nil
}

// Path returns the file being written
func (s *FileSink) Path() string {
	return s.path
}

// WriteFinding appends "TAKEOVER POSSIBLE AT <subdomain> (CNAME: <target>)"
func (s *FileSink) WriteFinding(f takeover.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.f, f.String()); err != nil {
		return fmt.Errorf("failed to write finding to %s: %w", s.path, err)
	}
	return nil
}

// Close closes the underlying file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// JSONLinesSink appends one JSON object per finding
type JSONLinesSink struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
}

// NewJSONLinesSink opens path for appending JSON lines
func NewJSONLinesSink(path string) (*JSONLinesSink, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &JSONLinesSink{f: f, enc: json.NewEncoder(f), path: path}, nil
}

// WriteFinding encodes the finding as a single line
func (s *JSONLinesSink) WriteFinding(f takeover.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write finding to %s: %w", s.path, err)
	}
	return nil
}

// Close closes the underlying file
func (s *JSONLinesSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// MultiSink writes each finding to every sink, returning the first error
type MultiSink []takeover.Sink

// WriteFinding writes to all sinks even if one fails
func (m MultiSink) WriteFinding(f takeover.Finding) error {
	var first error
	for _, s := range m {
		if err := s.WriteFinding(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return f, nil
}
