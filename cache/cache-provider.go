package cache

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxCacheSize is the total cache budget in bytes.
	// It is only used to derive the maximum number of entries.
	DefaultMaxCacheSize = 1049000
	// DefaultMaxObjectSize is the largest response that will be stored.
	DefaultMaxObjectSize = 102400
)

var ErrInvalidLimits = errors.New("invalid cache limits")

// CacheProvider is a bounded store of raw upstream responses keyed by the
// request target exactly as the client sent it.
// Capacity is enforced by entry count (see Limits.MaxObjectCount) and entries
// are evicted least-recently-used first, recency being a logical clock that
// advances on every insert and every hit.
//
// Implementations must be thread-safe! Every method runs under a single lock
// and must never perform network I/O while holding it.
type CacheProvider interface {
	// Find returns a copy of the payload stored under key.
	// A hit marks the entry as most recently used.
	Find(key string) ([]byte, bool, error)
	// Insert stores payload under key, evicting the least recently used entry
	// first if the cache is full. Payloads larger than MaxObjectSize are not
	// stored and Insert returns false.
	// Inserting an existing key replaces its payload in place.
	Insert(key string, payload []byte) (bool, error)
	// Purge removes the entry for key and reports whether it was present.
	// It is a utility method that is not used by the proxy itself.
	Purge(key string) (bool, error)
	// Entries lists all entries in insertion order, without payloads.
	Entries() ([]EntryInfo, error)
	// Limits returns the size limits the provider was created with.
	Limits() Limits
}

// EntryInfo describes a stored entry.
type EntryInfo struct {
	Key      string `json:"key"`
	Size     int    `json:"size"`
	LastUsed uint64 `json:"lastUsed"`
}

type Limits struct {
	MaxCacheSize  int `yaml:"maxCacheSize"`
	MaxObjectSize int `yaml:"maxObjectSize"`
}

// DefaultLimits returns the limits used by the proxy when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxCacheSize:  DefaultMaxCacheSize,
		MaxObjectSize: DefaultMaxObjectSize,
	}
}

// MaxObjectCount is the maximum number of entries the cache holds.
func (l Limits) MaxObjectCount() int {
	if l.MaxObjectSize <= 0 {
		return 0
	}
	return l.MaxCacheSize / l.MaxObjectSize
}

// Validate makes sure the limits allow at least one entry.
func (l Limits) Validate() error {
	if l.MaxCacheSize <= 0 || l.MaxObjectSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive (cache %d, object %d)",
			ErrInvalidLimits, l.MaxCacheSize, l.MaxObjectSize)
	}
	if l.MaxObjectCount() < 1 {
		return fmt.Errorf("%w: object size %d exceeds cache size %d",
			ErrInvalidLimits, l.MaxObjectSize, l.MaxCacheSize)
	}
	return nil
}
