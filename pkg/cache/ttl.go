package cache

import "time"

// Tier names a TTL class. Callers choose a tier by data volatility instead of
// passing ad-hoc durations, which keeps TTL policy in one place.
type Tier string

const (
	// TierShort is for volatile data such as counters and recent activity.
	TierShort Tier = "short"

	// TierMedium is for entity reads that change occasionally.
	TierMedium Tier = "medium"

	// TierLong is for reference data and aggregates that rarely change.
	TierLong Tier = "long"

	// TierRoute is the default for HTTP-cached routes.
	TierRoute Tier = "route"
)

var tierTTLs = map[Tier]time.Duration{
	TierShort:  60 * time.Second,
	TierMedium: 5 * time.Minute,
	TierLong:   1 * time.Hour,
	TierRoute:  2 * time.Minute,
}

// TTL returns the duration for the tier. Unknown tiers fall back to TierMedium.
func (t Tier) TTL() time.Duration {
	if ttl, ok := tierTTLs[t]; ok {
		return ttl
	}
	return tierTTLs[TierMedium]
}

// Seconds returns the TTL in whole seconds, as used in Cache-Control max-age.
func (t Tier) Seconds() int {
	return int(t.TTL() / time.Second)
}
