package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/axeq/takeoverme/internal/config"
	"github.com/axeq/takeoverme/internal/storage"
	"github.com/axeq/takeoverme/internal/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestApplyConfigFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takeoverme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
list: from-file.txt
threads: 40
retries: 5
timeout: 2s
verbose: true
`), 0644))

	c := config.DefaultConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(flags, c)
	require.NoError(t, flags.Parse([]string{"-t", "7", "-o", "out.txt", "--retries", "3"}))

	require.NoError(t, applyConfigFile(flags, c, path))

	// explicit flags win, even when equal to the default
	assert.Equal(t, 7, c.Threads)
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, "out.txt", c.OutputFile)
	// file beats defaults
	assert.Equal(t, "from-file.txt", c.ListFile)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.True(t, c.Verbose)
	// untouched keys keep their defaults
	assert.Equal(t, "fingerprints.json", c.FingerprintsFile)
	assert.Equal(t, time.Second, c.RetryDelay)
}

func TestApplyConfigFileMissing(t *testing.T) {
	c := config.DefaultConfig()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(flags, c)
	assert.Error(t, applyConfigFile(flags, c, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestEveryFlagHasField(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(flags, config.DefaultConfig())
	flags.VisitAll(func(f *pflag.Flag) {
		_, ok := flagFields[f.Name]
		assert.True(t, ok, "flag %s is not restored after loading a config file", f.Name)
	})
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionShort, versionJSON = false, false })

	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, buf.String(), "takeoverme version "+version.Version)

	buf.Reset()
	versionShort = true
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Equal(t, version.Version+"\n", buf.String())

	buf.Reset()
	versionShort, versionJSON = false, true
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, buf.String(), `"version": "`+version.Version+`"`)
}

func runFindingsCmd(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	findingsRun, findingsRuns, findingsFmt, findingsOut, findingsMax = "", false, "text", "", 20
	require.NoError(t, findingsCmd.Flags().Parse(args))
	t.Cleanup(func() {
		findingsCmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})
	require.NoError(t, runFindings(cmd, nil))
	return buf.String()
}

func TestFindingsCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "takeoverme.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, "run00001", "0.3.0", nil))
	require.NoError(t, store.SaveFinding(ctx, storage.FindingRecord{
		RunID:       "run00001",
		Subdomain:   "foo.example.com",
		CNAME:       "foo.bar-service.io",
		Fingerprint: "bar-service.io",
		FoundAt:     time.Now(),
	}))
	require.NoError(t, store.CompleteRun(ctx, "run00001", storage.RunCompleted, 3, 1))
	require.NoError(t, store.Close())

	out := runFindingsCmd(t, "--db", dbPath)
	assert.Contains(t, out, "TAKEOVER POSSIBLE AT foo.example.com (CNAME: foo.bar-service.io)")
	assert.Contains(t, out, "run00001")

	out = runFindingsCmd(t, "--db", dbPath, "--runs")
	assert.Contains(t, out, "run00001")
	assert.Contains(t, out, storage.RunCompleted)

	out = runFindingsCmd(t, "--db", dbPath, "--format", "json")
	assert.Contains(t, out, `"subdomain": "foo.example.com"`)

	out = runFindingsCmd(t, "--db", dbPath, "--format", "csv")
	assert.Contains(t, out, "foo.example.com,foo.bar-service.io,bar-service.io")

	report := filepath.Join(t.TempDir(), "report.md")
	out = runFindingsCmd(t, "--db", dbPath, "--export", report)
	assert.Contains(t, out, "Exported 1 findings")
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| foo.example.com | foo.bar-service.io | bar-service.io |")

	out = runFindingsCmd(t, "--db", dbPath, "--run", "nope")
	assert.Contains(t, out, "No findings recorded")
}

func TestFindingsMissingDatabase(t *testing.T) {
	findingsDB = filepath.Join(t.TempDir(), "missing.db")
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	assert.Error(t, runFindings(cmd, nil))
}
