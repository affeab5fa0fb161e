package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCacheConcurrentAccess(t *testing.T) {
	c := NewMemCache(testLimits)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key-%d", (w+i)%7)
				c.Insert(key, []byte(key))
				if got, ok, _ := c.Find(key); ok {
					assert.Equal(t, key, string(got))
				}
			}
		}(w)
	}
	wg.Wait()

	entries, err := c.Entries()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), testLimits.MaxObjectCount())
	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Key], "duplicate entry %s", e.Key)
		seen[e.Key] = true
	}
}

func TestEvictTiesGoToFirstInserted(t *testing.T) {
	c := NewMemCache(testLimits)
	c.entries = []memCacheEntry{
		{key: "a", lastUsed: 3},
		{key: "b", lastUsed: 1},
		{key: "c", lastUsed: 1},
	}
	c.evict()
	require.Len(t, c.entries, 2)
	assert.Equal(t, "a", c.entries[0].key)
	assert.Equal(t, "c", c.entries[1].key)
}

func TestRemovedEntriesAreReleased(t *testing.T) {
	c := NewMemCache(testLimits)
	for _, key := range []string{"a", "b", "c", "d"} {
		mustInsert(t, c, key, []byte(key))
	}
	_, err := c.Purge("a")
	require.NoError(t, err)
	mustInsert(t, c, "e", []byte("e")) // refills the slot
	mustInsert(t, c, "f", []byte("f")) // evicts b

	require.Len(t, c.entries, 4)
	_, err = c.Purge("c")
	require.NoError(t, err)

	// the slot past len must not keep the last payload alive
	tail := c.entries[:cap(c.entries)][len(c.entries)]
	assert.Equal(t, memCacheEntry{}, tail)
	assert.Equal(t, []string{"d", "e", "f"}, []string{c.entries[0].key, c.entries[1].key, c.entries[2].key})
}
