package cache

import (
	"sync"
)

type memCacheEntry struct {
	key      string
	payload  []byte
	lastUsed uint64
}

// MemCache is the default in-memory CacheProvider.
// Entries live in a slice kept in insertion order; lookups and eviction are
// linear scans, which is fine for the handful of entries the limits allow.
type MemCache struct {
	mutex   *sync.Mutex
	limits  Limits
	entries []memCacheEntry
	clock   uint64
}

func NewMemCache(limits Limits) *MemCache {
	return &MemCache{
		mutex:   &sync.Mutex{},
		limits:  limits,
		entries: make([]memCacheEntry, 0, limits.MaxObjectCount()),
	}
}

func (m *MemCache) Find(key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i := range m.entries {
		if m.entries[i].key == key {
			m.clock++
			m.entries[i].lastUsed = m.clock
			return append([]byte(nil), m.entries[i].payload...), true, nil
		}
	}
	return nil, false, nil
}

func (m *MemCache) Insert(key string, payload []byte) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(payload) > m.limits.MaxObjectSize {
		return false, nil
	}
	stored := append([]byte(nil), payload...)
	for i := range m.entries {
		if m.entries[i].key == key {
			m.clock++
			m.entries[i].payload = stored
			m.entries[i].lastUsed = m.clock
			return true, nil
		}
	}
	if len(m.entries) >= m.limits.MaxObjectCount() {
		m.evict()
	}
	m.clock++
	m.entries = append(m.entries, memCacheEntry{
		key:      key,
		payload:  stored,
		lastUsed: m.clock,
	})
	return true, nil
}

// evict removes the least recently used entry.
// Ties go to the entry that was inserted first. Caller must hold the mutex.
func (m *MemCache) evict() {
	if len(m.entries) == 0 {
		return
	}
	lru := 0
	for i := 1; i < len(m.entries); i++ {
		if m.entries[i].lastUsed < m.entries[lru].lastUsed {
			lru = i
		}
	}
	m.removeAt(lru)
}

// removeAt deletes entry i, clearing the vacated tail slot so its payload can
// be collected. Caller must hold the mutex.
func (m *MemCache) removeAt(i int) {
	last := len(m.entries) - 1
	copy(m.entries[i:], m.entries[i+1:])
	m.entries[last] = memCacheEntry{}
	m.entries = m.entries[:last]
}

func (m *MemCache) Purge(key string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i := range m.entries {
		if m.entries[i].key == key {
			m.removeAt(i)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemCache) Entries() ([]EntryInfo, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	infos := make([]EntryInfo, 0, len(m.entries))
	for _, e := range m.entries {
		infos = append(infos, EntryInfo{
			Key:      e.key,
			Size:     len(e.payload),
			LastUsed: e.lastUsed,
		})
	}
	return infos, nil
}

func (m *MemCache) Limits() Limits {
	return m.limits
}
