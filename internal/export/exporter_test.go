package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/axeq/takeoverme/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFindings() []storage.FindingRecord {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []storage.FindingRecord{
		{RunID: "r2", Subdomain: "zeta.example.com", CNAME: "zeta.bar-service.io", Fingerprint: "bar-service.io", FoundAt: at},
		{RunID: "r1", Subdomain: "alpha.example.com", CNAME: "alpha.s3.amazonaws.com", Fingerprint: "s3.amazonaws.com", FoundAt: at},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": FormatCSV, ".json": FormatJSON, ".md": FormatMarkdown, "Markdown": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat(".sarif")
	assert.Error(t, err)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleFindings(), nil).Export(&buf, FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"subdomain", "cname", "fingerprint", "found_at", "run_id"}, rows[0])
	assert.Equal(t, []string{"alpha.example.com", "alpha.s3.amazonaws.com", "s3.amazonaws.com", "2024-03-01T12:00:00Z", "r1"}, rows[1])
	assert.Equal(t, "zeta.example.com", rows[2][0])
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleFindings(), nil).Export(&buf, FormatJSON))

	var doc struct {
		Count    int                     `json:"count"`
		Findings []storage.FindingRecord `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, "alpha.example.com", doc.Findings[0].Subdomain)
}

func TestExportMarkdown(t *testing.T) {
	runs := []storage.RunRecord{{ID: "r1", Status: storage.RunCompleted, Total: 10, Findings: 1}}
	var buf bytes.Buffer
	require.NoError(t, NewExporter(sampleFindings(), runs).Export(&buf, FormatMarkdown))

	out := buf.String()
	assert.Contains(t, out, "## Runs")
	assert.Contains(t, out, "| r1 | completed |")
	assert.Contains(t, out, "## Findings (2)")
	assert.Contains(t, out, "| alpha.example.com | alpha.s3.amazonaws.com | s3.amazonaws.com |")

	buf.Reset()
	require.NoError(t, NewExporter(nil, nil).Export(&buf, FormatMarkdown))
	assert.Contains(t, buf.String(), "No takeover candidates found.")
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "findings.csv")
	require.NoError(t, NewExporter(sampleFindings(), nil).ExportFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alpha.example.com")

	assert.Error(t, NewExporter(nil, nil).ExportFile(filepath.Join(t.TempDir(), "findings.txt")))
}
