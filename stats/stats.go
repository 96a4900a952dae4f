// Package stats implements the statistics surface of spec.md §6: per
// partition, LP solver call counts and timings, cache hit/miss counts
// and timings, current/peak cache size, conflict counts, and update/
// backtrack counts and timings, aggregated across partitions and
// threads.
package stats

import "time"

// PartitionStats accumulates for the lifetime of a pid across repeated
// create/teardown cycles: the original's "archive on teardown" draft
// (spec.md's §10 supplement) keeps a pid's historical counters rather
// than resetting them when its model is retired and later re-created.
type PartitionStats struct {
	LPCalls int64
	LPTime  time.Duration

	CacheHits   int64
	CacheMisses int64
	CacheTime   time.Duration

	CacheSizeCurrent int
	CacheSizePeak    int

	ExistsConflicts int64
	ForallConflicts int64

	Updates    int64
	Backtracks int64
	UpdateTime time.Duration
}

// Merge adds other's counters into s in place. Size fields take the
// maximum of the two rather than summing, since they describe a
// current/peak gauge, not a running total.
func (s *PartitionStats) Merge(other PartitionStats) {
	s.LPCalls += other.LPCalls
	s.LPTime += other.LPTime
	s.CacheHits += other.CacheHits
	s.CacheMisses += other.CacheMisses
	s.CacheTime += other.CacheTime
	if other.CacheSizeCurrent > s.CacheSizeCurrent {
		s.CacheSizeCurrent = other.CacheSizeCurrent
	}
	if other.CacheSizePeak > s.CacheSizePeak {
		s.CacheSizePeak = other.CacheSizePeak
	}
	s.ExistsConflicts += other.ExistsConflicts
	s.ForallConflicts += other.ForallConflicts
	s.Updates += other.Updates
	s.Backtracks += other.Backtracks
	s.UpdateTime += other.UpdateTime
}

// Aggregate is PartitionStats summed across every partition, plus how
// many partitions contributed, per spec.md §6's "the propagator
// aggregates across partitions and threads."
type Aggregate struct {
	PartitionStats
	Partitions int
}

// AggregateAll sums a collection of per-pid stats into one Aggregate.
func AggregateAll(perPID map[string]PartitionStats) Aggregate {
	var agg Aggregate
	for _, s := range perPID {
		agg.Merge(s)
		agg.Partitions++
	}
	return agg
}
