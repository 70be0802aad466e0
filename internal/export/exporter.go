package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/axeq/takeoverme/internal/storage"
)

// Format represents an export format type
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or a file extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// Exporter writes stored findings in report formats
type Exporter struct {
	findings []storage.FindingRecord
	runs     []storage.RunRecord
}

// NewExporter creates an exporter. runs is optional and only used for the
// markdown summary.
func NewExporter(findings []storage.FindingRecord, runs []storage.RunRecord) *Exporter {
	sorted := append([]storage.FindingRecord(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Subdomain != sorted[j].Subdomain {
			return sorted[i].Subdomain < sorted[j].Subdomain
		}
		return sorted[i].FoundAt.Before(sorted[j].FoundAt)
	})
	return &Exporter{findings: sorted, runs: runs}
}

// Export writes the findings to w in the given format
func (e *Exporter) Export(w io.Writer, format Format) error {
	switch format {
	case FormatCSV:
		return e.writeCSV(w)
	case FormatJSON:
		return e.writeJSON(w)
	case FormatMarkdown:
		return e.writeMarkdown(w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportFile writes the findings to path, picking the format from its
// extension
func (e *Exporter) ExportFile(path string) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Export(f, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (e *Exporter) writeCSV(out io.Writer) error {
	w := csv.NewWriter(out)
	w.Write([]string{"subdomain", "cname", "fingerprint", "found_at", "run_id"})
	for _, f := range e.findings {
		w.Write([]string{
			f.Subdomain,
			f.CNAME,
			f.Fingerprint,
			f.FoundAt.UTC().Format(time.RFC3339),
			f.RunID,
		})
	}
	w.Flush()
	return w.Error()
}

func (e *Exporter) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Generated time.Time               `json:"generated"`
		Count     int                     `json:"count"`
		Findings  []storage.FindingRecord `json:"findings"`
	}{time.Now().UTC(), len(e.findings), e.findings})
}

func (e *Exporter) writeMarkdown(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("# Subdomain Takeover Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", time.Now().UTC().Format("2006-01-02 15:04 MST")))

	if len(e.runs) > 0 {
		sb.WriteString("## Runs\n\n")
		sb.WriteString("| Run | Status | Started | Checked | Findings |\n")
		sb.WriteString("|-----|--------|---------|---------|----------|\n")
		for _, r := range e.runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d |\n",
				r.ID, r.Status, r.StartedAt.UTC().Format("2006-01-02 15:04"), r.Total, r.Findings))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("## Findings (%d)\n\n", len(e.findings)))
	if len(e.findings) == 0 {
		sb.WriteString("No takeover candidates found.\n")
	} else {
		sb.WriteString("| Subdomain | CNAME | Service |\n")
		sb.WriteString("|-----------|-------|---------|\n")
		for _, f := range e.findings {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", escapeCell(f.Subdomain), escapeCell(f.CNAME), escapeCell(f.Fingerprint)))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
