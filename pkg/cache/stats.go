package cache

import "math"

// Stats is a snapshot of process-lifetime cache counters.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Sets          uint64 `json:"sets"`
	Invalidations uint64 `json:"invalidations"`

	// MemorySize is the number of live entries in the local tier.
	MemorySize int `json:"memorySize"`

	// HitRate is hits / (hits + misses) as a percentage in [0, 100],
	// rounded to two decimals. Zero before the first lookup.
	HitRate float64 `json:"hitRate"`
}

func newStats(hits, misses, sets, invalidations uint64, size int) Stats {
	var rate float64
	if total := hits + misses; total > 0 {
		rate = math.Round(float64(hits)/float64(total)*10000) / 100
	}
	return Stats{
		Hits:          hits,
		Misses:        misses,
		Sets:          sets,
		Invalidations: invalidations,
		MemorySize:    size,
		HitRate:       rate,
	}
}
