package delivery

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTracker(t *testing.T, ttl time.Duration) *Tracker {
	t.Helper()
	tr, err := Open(filepath.Join(t.TempDir(), "state", "deliveries.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestClaimOnce(t *testing.T) {
	tr := openTracker(t, time.Hour)
	key := Key("p1", "aaa", "bbb")

	ok, err := tr.Claim(key, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.Claim(key, "run-2")
	require.NoError(t, err)
	assert.False(t, ok, "redelivery is skipped")

	ok, err = tr.Claim(Key("p1", "aaa", "ccc"), "run-3")
	require.NoError(t, err)
	assert.True(t, ok, "different revision pair")
}

func TestReleaseAllowsRetry(t *testing.T) {
	tr := openTracker(t, time.Hour)
	key := Key("p1", "aaa", "bbb")

	_, err := tr.Claim(key, "run-1")
	require.NoError(t, err)
	require.NoError(t, tr.Release(key))

	ok, err := tr.Claim(key, "run-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpiryAndPrune(t *testing.T) {
	tr := openTracker(t, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	old := Key("p1", "a", "b")
	_, err := tr.Claim(old, "run-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	fresh := Key("p1", "c", "d")
	_, err = tr.Claim(fresh, "run-2")
	require.NoError(t, err)

	removed, err := tr.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ok, err := tr.Claim(fresh, "run-3")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = tr.Claim(old, "run-4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReopenKeepsClaims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deliveries.db")
	tr, err := Open(path, 0)
	require.NoError(t, err)
	_, err = tr.Claim(Key("p1", "a", "b"), "run-1")
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	tr, err = Open(path, 0)
	require.NoError(t, err)
	defer tr.Close()
	ok, err := tr.Claim(Key("p1", "a", "b"), "run-2")
	require.NoError(t, err)
	assert.False(t, ok)
}
