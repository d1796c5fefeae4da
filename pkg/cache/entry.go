package cache

import "time"

// entry is a value held by the local tier.
type entry struct {
	// value is the JSON encoding of the cached value
	value []byte

	// expiresAt is when the entry becomes stale
	expiresAt time.Time
}

// isExpired reports whether the entry is stale at now.
// An entry is live iff now < expiresAt.
func (e entry) isExpired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// ttl returns the time until expiration at now.
// Returns 0 if already expired.
func (e entry) ttl(now time.Time) time.Duration {
	ttl := e.expiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
