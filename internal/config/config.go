package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoInput is returned when no subdomain list was given
var ErrNoInput = errors.New("a subdomain list is required (-l)")

// Config holds all configuration options for takeoverme
type Config struct {
	// Input / output
	ListFile         string `yaml:"list"`
	OutputFile       string `yaml:"output"`
	JSONOutputFile   string `yaml:"json_output"`
	FingerprintsFile string `yaml:"fingerprints"`

	// Performance
	Threads   int `yaml:"threads"` // concurrent evaluations
	RateLimit int `yaml:"rate"`    // HTTP requests per second, 0 = unlimited

	// Liveness probe
	Retries    int           `yaml:"retries"`
	Timeout    time.Duration `yaml:"timeout"` // per HTTP attempt
	RetryDelay time.Duration `yaml:"retry_delay"`
	Schemes    []string      `yaml:"schemes"`
	Insecure   bool          `yaml:"insecure"`
	UserAgent  string        `yaml:"user_agent"`

	// DNS
	Resolvers  []string      `yaml:"resolvers"` // empty = /etc/resolv.conf
	DNSTimeout time.Duration `yaml:"dns_timeout"`
	AllCNAMEs  bool          `yaml:"all_cnames"` // match every CNAME record, not just the first

	// Input handling
	Dedupe        bool `yaml:"dedupe"`
	ValidateHosts bool `yaml:"validate_hosts"`

	// Run control
	RunTimeout time.Duration `yaml:"run_timeout"` // 0 = no limit

	// Persistence
	DBPath string `yaml:"db"` // SQLite database, empty = disabled

	// Presentation
	Verbose  bool `yaml:"verbose"`
	Debug    bool `yaml:"debug"`
	Silent   bool `yaml:"silent"`
	NoColor  bool `yaml:"no_color"`
	Progress bool `yaml:"progress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		FingerprintsFile: "fingerprints.json",
		Threads:          10,
		Retries:          3,
		Timeout:          5 * time.Second,
		RetryDelay:       time.Second,
		Schemes:          []string{"https", "http"},
		DNSTimeout:       5 * time.Second,
	}
}

// LoadFile overlays values from a YAML file onto c. Keys absent from the
// file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration before a run
func (c *Config) Validate() error {
	if c.ListFile == "" {
		return ErrNoInput
	}
	if c.OutputFile == "" {
		return fmt.Errorf("an output file is required (-o)")
	}
	if c.FingerprintsFile == "" {
		return fmt.Errorf("a fingerprints file is required")
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", c.Threads)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %s", c.RetryDelay)
	}
	if c.DNSTimeout <= 0 {
		return fmt.Errorf("dns timeout must be positive, got %s", c.DNSTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run timeout must not be negative, got %s", c.RunTimeout)
	}
	if len(c.Schemes) == 0 {
		return fmt.Errorf("at least one scheme is required")
	}
	for _, s := range c.Schemes {
		if s != "https" && s != "http" {
			return fmt.Errorf("unsupported scheme %q (use https or http)", s)
		}
	}
	return nil
}
