package debug

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogfDisabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Disable()

	Logf("probe", "attempt %d", 1)
	Record("probe", time.Second, nil)

	assert.Empty(t, buf.String())
	assert.Empty(t, Stats())
}

func TestRecordAndSummary(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Enable()
	defer Disable()

	Logf("dns", "query %s", "foo.example.com")
	Record("dns", 10*time.Millisecond, nil)
	Record("dns", 30*time.Millisecond, errors.New("timeout"))
	Record("probe", 5*time.Millisecond, nil)

	all := Stats()
	require.Len(t, all, 2)
	assert.Equal(t, "dns", all[0].Component)
	assert.Equal(t, 2, all[0].Calls)
	assert.Equal(t, 1, all[0].Errors)
	assert.Equal(t, 30*time.Millisecond, all[0].Max)

	Summary()
	assert.Contains(t, buf.String(), "dns: query foo.example.com")
	assert.Contains(t, buf.String(), "DEBUG SUMMARY")
}
