package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/axeq/takeoverme/internal/export"
	"github.com/axeq/takeoverme/internal/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	findingsDB   string
	findingsRun  string
	findingsRuns bool
	findingsFmt  string
	findingsOut  string
	findingsMax  int

	findingsCmd = &cobra.Command{
		Use:   "findings",
		Short: "List findings recorded with --db",
		Long: `Lists takeover findings stored in a SQLite database written by a run
started with --db.

Examples:
  takeoverme findings --db takeoverme.db            # findings of every run
  takeoverme findings --db takeoverme.db --run a1b2c3d4
  takeoverme findings --db takeoverme.db --runs     # recent runs
  takeoverme findings --db takeoverme.db --format csv
  takeoverme findings --db takeoverme.db --export report.md`,
		Args: cobra.NoArgs,
		RunE: runFindings,
	}
)

func init() {
	findingsCmd.Flags().StringVar(&findingsDB, "db", "takeoverme.db", "SQLite database")
	findingsCmd.Flags().StringVar(&findingsRun, "run", "", "Only show findings of this run ID")
	findingsCmd.Flags().BoolVar(&findingsRuns, "runs", false, "List recent runs instead of findings")
	findingsCmd.Flags().IntVar(&findingsMax, "limit", 20, "Maximum number of runs listed with --runs")
	findingsCmd.Flags().StringVar(&findingsFmt, "format", "text", "Output format: text, json, csv or markdown")
	findingsCmd.Flags().StringVar(&findingsOut, "export", "", "Write findings to a file; format taken from the extension (.csv, .json, .md)")
}

func runFindings(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(findingsDB); err != nil {
		return fmt.Errorf("database not found: %s", findingsDB)
	}
	store, err := storage.NewSQLiteStorage(findingsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if findingsRuns {
		runs, err := store.ListRuns(ctx, findingsMax)
		if err != nil {
			return err
		}
		if findingsFmt == "json" {
			return writeJSON(cmd, runs)
		}
		if len(runs) == 0 {
			color.New(color.FgYellow).Fprintln(out, "No runs recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tCHECKED\tFINDINGS\tVERSION")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				r.ID, r.Status, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Total, r.Findings, r.Version)
		}
		return tw.Flush()
	}

	findings, err := store.GetFindings(ctx, findingsRun)
	if err != nil {
		return err
	}
	if findingsOut != "" || findingsFmt != "text" {
		runs, err := store.ListRuns(ctx, findingsMax)
		if err != nil {
			return err
		}
		exp := export.NewExporter(findings, runs)
		if findingsOut != "" {
			if err := exp.ExportFile(findingsOut); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "Exported %d findings to %s\n", len(findings), findingsOut)
			return nil
		}
		format, err := export.ParseFormat(findingsFmt)
		if err != nil {
			return err
		}
		return exp.Export(out, format)
	}
	if len(findings) == 0 {
		color.New(color.FgGreen).Fprintln(out, "No findings recorded")
		return nil
	}

	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)
	for _, f := range findings {
		red.Fprintf(out, "TAKEOVER POSSIBLE AT %s (CNAME: %s)", f.Subdomain, f.CNAME)
		gray.Fprintf(out, "  [%s] %s run %s\n", f.Fingerprint, f.FoundAt.Local().Format("2006-01-02 15:04:05"), f.RunID)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
