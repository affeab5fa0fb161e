package cachingproxy

import "fmt"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache did not contain any response for the request target.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"

	// The cache could not be consulted, e.g. the provider returned an error.
	CacheStatusFwdBypass CacheStatusFwdReason = "bypass"
)

// CacheStatus describes how a request was handled, modeled after the
// Cache-Status response header (RFC 9211).
// The proxy relays responses verbatim, so it only ever ends up in logs.
type CacheStatus struct {
	status    CacheStatusStatus
	detail    string
	fwdReason CacheStatusFwdReason
	stored    bool
}

func (cs *CacheStatus) Hit() {
	cs.status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.status = CacheStatusFwd
	cs.fwdReason = reason
}

func (cs *CacheStatus) Stored() {
	cs.stored = true
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) IsHit() bool {
	return cs.status == CacheStatusHit
}

func (cs *CacheStatus) String() string {
	status := fmt.Sprintf("Caching-Proxy; %s", cs.status)
	if cs.status == CacheStatusFwd && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status = status + "; stored"
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}
