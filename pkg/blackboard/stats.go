package blackboard

import "sync/atomic"

// Stats counts blackboard accesses. Counters are updated atomically
// outside the store lock, so snapshots are cheap to take.
type Stats struct {
	reads         atomic.Int64
	hits          atomic.Int64
	misses        atomic.Int64
	writes        atomic.Int64
	deletes       atomic.Int64
	expirations   atomic.Int64
	invalidations atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the access counters.
type StatsSnapshot struct {
	Reads         int64 `json:"reads"`
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Writes        int64 `json:"writes"`
	Deletes       int64 `json:"deletes"`
	Expirations   int64 `json:"expirations"`
	Invalidations int64 `json:"invalidations"`
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Reads:         s.reads.Load(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Writes:        s.writes.Load(),
		Deletes:       s.deletes.Load(),
		Expirations:   s.expirations.Load(),
		Invalidations: s.invalidations.Load(),
	}
}
