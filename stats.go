package cachingproxy

import "sync/atomic"

type stats struct {
	hits           atomic.Int64
	misses         atomic.Int64
	stored         atomic.Int64
	tooLarge       atomic.Int64
	malformed      atomic.Int64
	upstreamErrors atomic.Int64
	clientErrors   atomic.Int64
}

// Stats is a point-in-time copy of the proxy counters.
type Stats struct {
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	Stored         int64 `json:"stored"`
	TooLarge       int64 `json:"tooLarge"`
	Malformed      int64 `json:"malformed"`
	UpstreamErrors int64 `json:"upstreamErrors"`
	ClientErrors   int64 `json:"clientErrors"`
}

// Stats returns the current counters.
func (p *Proxy) Stats() Stats {
	return Stats{
		Hits:           p.stats.hits.Load(),
		Misses:         p.stats.misses.Load(),
		Stored:         p.stats.stored.Load(),
		TooLarge:       p.stats.tooLarge.Load(),
		Malformed:      p.stats.malformed.Load(),
		UpstreamErrors: p.stats.upstreamErrors.Load(),
		ClientErrors:   p.stats.clientErrors.Load(),
	}
}
