package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/axeq/takeoverme/internal/config"
	"github.com/axeq/takeoverme/internal/debug"
	"github.com/axeq/takeoverme/internal/runner"
	"github.com/axeq/takeoverme/internal/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfg        = *config.DefaultConfig()
	configFile string
	rootCmd    = &cobra.Command{
		Use:   "takeoverme",
		Short: "Detect subdomains that may be open to takeover",
		Long: `takeoverme checks a list of subdomains for dangling CNAME records.

A subdomain is reported when it answers HTTP 404 and its CNAME points at a
hosting service listed in the fingerprints file. Findings are appended to
the output file, one line per subdomain.

Example:
  takeoverme -l subdomains.txt -o results.txt -t 20 -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCheck,
	}
)

func init() {
	bindFlags(rootCmd.Flags(), &cfg)
	rootCmd.Flags().StringVar(&configFile, "config", "", "YAML config file; explicit flags take precedence")

	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(versionCmd)
}

func bindFlags(f *pflag.FlagSet, cfg *config.Config) {
	def := config.DefaultConfig()

	// Input / output
	f.StringVarP(&cfg.ListFile, "list", "l", "", "File containing subdomains, one per line (required)")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "File to append findings to (required)")
	f.StringVar(&cfg.JSONOutputFile, "json-output", "", "Also append findings as JSON lines to this file")
	f.StringVarP(&cfg.FingerprintsFile, "fingerprints", "f", def.FingerprintsFile, "Fingerprints file (JSON, or YAML by extension)")

	// Performance
	f.IntVarP(&cfg.Threads, "threads", "t", def.Threads, "Number of subdomains checked concurrently")
	f.IntVarP(&cfg.RateLimit, "rate", "r", 0, "HTTP requests per second (0 = unlimited)")

	// Probe
	f.IntVar(&cfg.Retries, "retries", def.Retries, "Probe rounds per subdomain")
	f.DurationVar(&cfg.Timeout, "timeout", def.Timeout, "Timeout of one HTTP attempt")
	f.DurationVar(&cfg.RetryDelay, "retry-delay", def.RetryDelay, "Pause between probe rounds")
	f.StringSliceVar(&cfg.Schemes, "schemes", def.Schemes, "Schemes tried in order each round")
	f.BoolVar(&cfg.Insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVar(&cfg.UserAgent, "user-agent", "", "User-Agent header (default "+version.UserAgent()+")")

	// DNS
	f.StringSliceVar(&cfg.Resolvers, "resolvers", nil, "Nameservers to query (default: /etc/resolv.conf)")
	f.DurationVar(&cfg.DNSTimeout, "dns-timeout", def.DNSTimeout, "Timeout of one DNS query")
	f.BoolVar(&cfg.AllCNAMEs, "all-cnames", false, "Match every CNAME record instead of the first")

	// Input handling
	f.BoolVar(&cfg.Dedupe, "dedupe", false, "Check each subdomain only once")
	f.BoolVar(&cfg.ValidateHosts, "validate", false, "Skip lines that are not valid hostnames")

	// Run control
	f.DurationVar(&cfg.RunTimeout, "run-timeout", 0, "Stop starting new checks after this long (0 = no limit)")
	f.StringVar(&cfg.DBPath, "db", "", "Record the run in this SQLite database")

	// Presentation
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Print active domains and findings as they are found")
	f.BoolVar(&cfg.Progress, "progress", false, "Show a progress bar")
	f.BoolVar(&cfg.Debug, "debug", false, "Show timing logs for every probe and lookup")
	f.BoolVar(&cfg.Silent, "silent", false, "Only write findings to the output files")
	f.BoolVar(&cfg.NoColor, "no-color", false, "Disable colored output")
}

// Execute runs the root command. Cancelling ctx stops the run; subdomains
// not yet started are reported as interrupted.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if err := applyConfigFile(cmd.Flags(), &cfg, configFile); err != nil {
			return err
		}
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	if cfg.Debug {
		debug.Enable()
	}
	if cfg.ListFile == "" && cfg.OutputFile == "" {
		return cmd.Help()
	}

	if !cfg.Silent {
		printBanner(cmd.OutOrStdout())
	}

	r := runner.New(&cfg)
	r.Stdout = cmd.OutOrStdout()
	r.Stderr = cmd.ErrOrStderr()
	_, err := r.Run(cmd.Context())
	return err
}

// flagFields copies the value behind a flag from src to dst
var flagFields = map[string]func(dst, src *config.Config){
	"list":         func(d, s *config.Config) { d.ListFile = s.ListFile },
	"output":       func(d, s *config.Config) { d.OutputFile = s.OutputFile },
	"json-output":  func(d, s *config.Config) { d.JSONOutputFile = s.JSONOutputFile },
	"fingerprints": func(d, s *config.Config) { d.FingerprintsFile = s.FingerprintsFile },
	"threads":      func(d, s *config.Config) { d.Threads = s.Threads },
	"rate":         func(d, s *config.Config) { d.RateLimit = s.RateLimit },
	"retries":      func(d, s *config.Config) { d.Retries = s.Retries },
	"timeout":      func(d, s *config.Config) { d.Timeout = s.Timeout },
	"retry-delay":  func(d, s *config.Config) { d.RetryDelay = s.RetryDelay },
	"schemes":      func(d, s *config.Config) { d.Schemes = s.Schemes },
	"insecure":     func(d, s *config.Config) { d.Insecure = s.Insecure },
	"user-agent":   func(d, s *config.Config) { d.UserAgent = s.UserAgent },
	"resolvers":    func(d, s *config.Config) { d.Resolvers = s.Resolvers },
	"dns-timeout":  func(d, s *config.Config) { d.DNSTimeout = s.DNSTimeout },
	"all-cnames":   func(d, s *config.Config) { d.AllCNAMEs = s.AllCNAMEs },
	"dedupe":       func(d, s *config.Config) { d.Dedupe = s.Dedupe },
	"validate":     func(d, s *config.Config) { d.ValidateHosts = s.ValidateHosts },
	"run-timeout":  func(d, s *config.Config) { d.RunTimeout = s.RunTimeout },
	"db":           func(d, s *config.Config) { d.DBPath = s.DBPath },
	"verbose":      func(d, s *config.Config) { d.Verbose = s.Verbose },
	"progress":     func(d, s *config.Config) { d.Progress = s.Progress },
	"debug":        func(d, s *config.Config) { d.Debug = s.Debug },
	"silent":       func(d, s *config.Config) { d.Silent = s.Silent },
	"no-color":     func(d, s *config.Config) { d.NoColor = s.NoColor },
}

// applyConfigFile loads path on top of the defaults, then restores every
// flag the user set explicitly.
func applyConfigFile(flags *pflag.FlagSet, c *config.Config, path string) error {
	flagged := *c
	merged := config.DefaultConfig()
	if err := merged.LoadFile(path); err != nil {
		return err
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := flagFields[f.Name]; ok {
			apply(merged, &flagged)
		}
	})
	*c = *merged
	return nil
}

func printBanner(w io.Writer) {
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	red.Fprint(w, `
  _        _
 | |_ __ _| |_____ _____ _____ _ _ _ __  ___
 |  _/ _' | / / -_) _ \ V / -_) '_| '  \/ -_)
  \__\__,_|_\_\___\___/\_/\___|_| |_|_|_\___|
`)
	fmt.Fprintln(w)
	cyan.Fprint(w, "  Subdomain takeover detection")
	gray.Fprintf(w, "  v%s\n\n", version.Version)
}
