package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KromDaniel/redos/pkg/redos"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := openTestCache(t)
	a, err := redos.NewBuilder().Build()
	require.NoError(t, err)
	fp := a.Config().Fingerprint()

	report, err := a.Analyze(context.Background(), `(a+)+`)
	require.NoError(t, err)

	_, ok, err := c.Get(fp, `(a+)+`)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(fp, report))
	got, ok, err := c.Get(fp, `(a+)+`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, redos.EDA, got.Kind)
	assert.True(t, got.Vulnerable)
	assert.Equal(t, report.Witness, got.Witness)

	vulnerable, err := got.Verdict()
	require.NoError(t, err)
	assert.True(t, vulnerable)

	// Another configuration does not see the entry.
	_, ok, err = c.Get(fp+"x", `(a+)+`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheSkipsInconclusive(t *testing.T) {
	c := openTestCache(t)
	a, err := redos.NewBuilder().WithTimeoutDuration(time.Nanosecond).Build()
	require.NoError(t, err)

	report, err := a.Analyze(context.Background(), `(a+)+`)
	require.NoError(t, err)
	require.True(t, report.Inconclusive())

	require.NoError(t, c.Put("fp", report))
	n, err := c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a", "b"), Key("a", "b"))
	assert.NotEqual(t, Key("a", "b"), Key("ab", ""))
	assert.Len(t, Key("a", "b"), len(keyPrefix)+64)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(Config{Path: dir, TTL: time.Hour})
	require.NoError(t, err)

	report := &redos.Report{Pattern: "abc", Kind: redos.NoIDA}
	require.NoError(t, c.Put("fp", report))
	require.NoError(t, c.Close())

	c, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get("fp", "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, redos.NoIDA, got.Kind)
}
