package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
foo.example.com
  live.example.com  
# comment
FOO.example.com
foo.example.com
bad host.example.com
-dash.example.com
`

func TestReadDefaultsKeepEverything(t *testing.T) {
	list, err := Read(strings.NewReader(sample), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"foo.example.com", "live.example.com", "FOO.example.com", "foo.example.com",
		"bad host.example.com", "-dash.example.com",
	}, list.Hosts)
	assert.Zero(t, list.Duplicates)
	assert.Empty(t, list.Rejected)
}

func TestReadDedupeAndValidate(t *testing.T) {
	list, err := Read(strings.NewReader(sample), Options{Dedupe: true, ValidateHosts: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo.example.com", "live.example.com"}, list.Hosts)
	assert.Equal(t, 2, list.Duplicates)
	assert.Equal(t, []string{"bad host.example.com", "-dash.example.com"}, list.Rejected)
}

func TestReadEmpty(t *testing.T) {
	_, err := Read(strings.NewReader("\n# nothing\n"), Options{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.example.com\nb.example.com\n"), 0644))

	list, err := ReadFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, list.Hosts, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"), Options{})
	assert.Error(t, err)
}

func TestValidHostname(t *testing.T) {
	valid := []string{"example.com", "a.b.c", "_dmarc.example.com", "xn--bcher-kva.example", "foo.example.com."}
	invalid := []string{"", "a..b", "-a.com", "a-.com", "with space.com", "https://example.com", strings.Repeat("a", 64) + ".com"}

	for _, h := range valid {
		assert.True(t, ValidHostname(h), h)
	}
	for _, h := range invalid {
		assert.False(t, ValidHostname(h), h)
	}
}
