package fingerprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	set := New([]string{"bar-service.io", "herokudns.com", "s3-website"})

	tests := []struct {
		target string
		want   bool
	}{
		{"foo.bar-service.io", true},
		{"app.herokudns.com", true},
		{"bucket.s3-website-us-east-1.amazonaws.com", true},
		{"foo.BAR-SERVICE.io", false},
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Matches(tt.target))
		})
	}
}

func TestMatchesAgreesWithSubstringSearch(t *testing.T) {
	fps := []string{"azurewebsites.net", "github.io", "cloudfront.net"}
	targets := []string{"x.github.io", "d1.cloudfront.net", "azurewebsites.ne", "plain.example.org"}
	set := New(fps)

	for _, target := range targets {
		want := false
		for _, fp := range fps {
			if strings.Contains(target, fp) {
				want = true
			}
		}
		assert.Equal(t, want, set.Matches(target), target)
	}
}

func TestEmptySetNeverMatches(t *testing.T) {
	assert.False(t, New(nil).Matches("anything.example.com"))
	var nilSet *Set
	assert.False(t, nilSet.Matches("anything.example.com"))
	assert.Equal(t, 0, nilSet.Len())
}

func TestMatchReturnsFirstInOrder(t *testing.T) {
	set := New([]string{"service.io", "bar-service.io"})
	fp, ok := set.Match("foo.bar-service.io")
	require.True(t, ok)
	assert.Equal(t, "service.io", fp)
}

func TestNewDropsBlankAndDuplicates(t *testing.T) {
	set := New([]string{"a.io", "", "  ", "b.io", "a.io"})
	assert.Equal(t, []string{"a.io", "b.io"}, set.Items())
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fingerprints": ["bar-service.io", "github.io"]}`), 0644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar-service.io", "github.io"}, set.Items())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fingerprints:\n  - bar-service.io\n  - github.io\n"), 0644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"fingerprints": [`), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"fingerprints": [""]}`), 0644))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrEmpty)
}
