package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCacheInMemoryIsPrivate(t *testing.T) {
	a, err := NewSQLiteCache("", testLimits)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteCache("", testLimits)
	require.NoError(t, err)
	defer b.Close()

	mustInsert(t, a, "k", []byte("v"))
	assertAbsent(t, b, "k")
}

func TestSQLiteCacheFileKeepsClock(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cache.db")

	c, err := NewSQLiteCache(filename, testLimits)
	require.NoError(t, err)
	mustInsert(t, c, "a", []byte("1"))
	mustInsert(t, c, "b", []byte("2"))
	require.NoError(t, c.Close())

	c, err = NewSQLiteCache(filename, testLimits)
	require.NoError(t, err)
	defer c.Close()
	assertPresent(t, c, "a", []byte("1"))

	entries, err := c.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// the hit on a after reopening must rank above b
	assert.Greater(t, entries[0].LastUsed, entries[1].LastUsed)
}
