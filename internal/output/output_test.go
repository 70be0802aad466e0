package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/axeq/takeoverme/internal/config"
	"github.com/axeq/takeoverme/internal/probe"
	"github.com/axeq/takeoverme/internal/resolver"
	"github.com/axeq/takeoverme/internal/takeover"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func finding(sub, target string) takeover.Finding {
	return takeover.Finding{Subdomain: sub, CNAME: target, Fingerprint: "bar-service.io", Status: 404, Timestamp: time.Unix(0, 0).UTC()}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestFileSinkAppendsConcurrently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("TAKEOVER POSSIBLE AT old.example.com (CNAME: old.bar-service.io)\n"), 0644))

	sink, err := NewFileSink(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := fmt.Sprintf("s%02d.example.com", i)
			assert.NoError(t, sink.WriteFinding(finding(sub, "x.bar-service.io")))
		}(i)
	}
	wg.Wait()
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 51)
	assert.Equal(t, "TAKEOVER POSSIBLE AT old.example.com (CNAME: old.bar-service.io)", lines[0])
	sorted := append([]string(nil), lines[1:]...)
	sort.Strings(sorted)
	assert.Equal(t, "TAKEOVER POSSIBLE AT s00.example.com (CNAME: x.bar-service.io)", sorted[0])
	assert.Equal(t, "TAKEOVER POSSIBLE AT s49.example.com (CNAME: x.bar-service.io)", sorted[49])
}

func TestJSONLinesSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	sink, err := NewJSONLinesSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.WriteFinding(finding("foo.example.com", "foo.bar-service.io")))
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	var got takeover.Finding
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "foo.bar-service.io", got.CNAME)
	assert.Equal(t, "bar-service.io", got.Fingerprint)
}

type failingSink struct{ calls int }

func (f *failingSink) WriteFinding(takeover.Finding) error {
	f.calls++
	return errors.New("broken pipe")
}

type countingSink struct{ calls int }

func (c *countingSink) WriteFinding(takeover.Finding) error {
	c.calls++
	return nil
}

func TestMultiSinkWritesAll(t *testing.T) {
	bad, good := &failingSink{}, &countingSink{}
	err := MultiSink{bad, good}.WriteFinding(finding("a.example.com", "a.bar-service.io"))
	assert.EqualError(t, err, "broken pipe")
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
}

func TestConsoleVerbose(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut, true)

	f := finding("foo.example.com", "foo.bar-service.io")
	c.Observe(takeover.Outcome{Subdomain: "foo.example.com", Probe: probe.Result{Kind: probe.StatusCode, Status: 404}, Finding: &f})
	c.Observe(takeover.Outcome{Subdomain: "live.example.com", Probe: probe.Result{Kind: probe.StatusCode, Status: 200}})
	c.Observe(takeover.Outcome{Subdomain: "flaky.example.com", Probe: probe.Result{Kind: probe.Unreachable}})
	c.Observe(takeover.Outcome{Subdomain: "dead.example.com", Probe: probe.Result{Kind: probe.StatusCode, Status: 404}, CNAME: &resolver.Outcome{Kind: resolver.DomainNotFound}})

	assert.Equal(t,
		"TAKEOVER POSSIBLE AT foo.example.com (CNAME: foo.bar-service.io)\n"+
			"ACTIVE DOMAIN: live.example.com (Status: 200)\n",
		out.String())
	assert.Empty(t, errOut.String())
}

func TestConsoleQuiet(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewConsole(&out, &errOut, false)

	f := finding("foo.example.com", "foo.bar-service.io")
	c.Observe(takeover.Outcome{Subdomain: "foo.example.com", Probe: probe.Result{Kind: probe.StatusCode, Status: 404}, Finding: &f, SinkErr: errors.New("disk full")})
	c.Observe(takeover.Outcome{Subdomain: "live.example.com", Probe: probe.Result{Kind: probe.StatusCode, Status: 200}})

	assert.Empty(t, out.String())
	assert.Equal(t, "[!] foo.example.com: disk full\n", errOut.String())
}

func TestConsoleSummary(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, io.Discard, false)
	c.Summary(&takeover.Result{
		Total:        3,
		TotalChecked: 3,
		Findings:     []takeover.Finding{finding("foo.example.com", "foo.bar-service.io")},
		Active:       1,
		Unreachable:  1,
		Interrupted:  1,
	})
	assert.Contains(t, out.String(), "Checked 3 subdomains")
	assert.Contains(t, out.String(), "takeover candidates: 1")
	assert.Contains(t, out.String(), "interrupted: 1")
	assert.Contains(t, out.String(), "TAKEOVER POSSIBLE AT foo.example.com")

	out.Reset()
	c.Summary(&takeover.Result{Total: 5, TotalChecked: 2, Interrupted: 3})
	assert.Contains(t, out.String(), "Checked 2 of 5 subdomains")
}

func TestProgressCountsFindings(t *testing.T) {
	p := NewProgress(2, io.Discard)
	f := finding("foo.example.com", "foo.bar-service.io")
	p.Observe(takeover.Outcome{Subdomain: "foo.example.com", Finding: &f})
	p.Observe(takeover.Outcome{Subdomain: "live.example.com"})
	assert.Equal(t, 1, p.Findings())
	assert.NoError(t, p.Finish())
}

func TestManager(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.OutputFile = filepath.Join(dir, "results.txt")
	cfg.JSONOutputFile = filepath.Join(dir, "results.jsonl")
	cfg.Progress = true

	m, err := NewManager(cfg, 1, io.Discard, io.Discard)
	require.NoError(t, err)
	assert.Len(t, m.Observers(), 2)

	require.NoError(t, m.Sink().WriteFinding(finding("foo.example.com", "foo.bar-service.io")))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "second close is a no-op")

	assert.Equal(t, []string{"TAKEOVER POSSIBLE AT foo.example.com (CNAME: foo.bar-service.io)"}, readLines(t, cfg.OutputFile))
	assert.Len(t, readLines(t, cfg.JSONOutputFile), 1)
}
