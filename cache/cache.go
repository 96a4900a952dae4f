// Package cache implements spec.md §4.1: a process-wide (or per-worker)
// memo of sat/unsat outcomes for constraint configurations, maintained
// as a pair of antichain "borders" per objective key so that a single
// lookup answers for every subset/superset configuration it dominates.
package cache

import (
	"sync"

	"github.com/kthuillier/merrinasp/atom"
)

// Verdict is the outcome cache.Check returns.
type Verdict int

const (
	Unknown Verdict = iota
	SAT
	UNSAT
)

// Configuration is a finite set of description keys describing the
// current LP problem (spec.md §3).
type Configuration map[atom.DescriptionKey]struct{}

// NewConfiguration builds a Configuration from a slice of keys.
func NewConfiguration(keys []atom.DescriptionKey) Configuration {
	c := make(Configuration, len(keys))
	for _, k := range keys {
		c[k] = struct{}{}
	}
	return c
}

// subset reports whether a is a subset of b.
func subset(a, b Configuration) bool {
	if len(a) > len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// ObjectiveKey names which objective a border is keyed on. The zero
// value is the "no objective, feasibility only" key, matching spec.md
// §3's "with None meaning feasibility only, no objective".
type ObjectiveKey struct {
	set   bool
	value atom.DescriptionKey
}

// NoObjective is the feasibility-only objective key.
var NoObjective = ObjectiveKey{}

// ObjectiveKeyOf builds an ObjectiveKey from a description key.
func ObjectiveKeyOf(d atom.DescriptionKey) ObjectiveKey {
	return ObjectiveKey{set: true, value: d}
}

type border struct {
	mu      sync.RWMutex
	sat     []Configuration
	unsat   []Configuration
	maxSeen int
}

// Cache is the border cache of spec.md §4.1. It is safe for concurrent
// use: each objective-keyed border guards itself with its own mutex,
// per spec.md §5's "lock granularity is a single border list" — so one
// Cache MAY be shared across per-thread propagator.Checkers, or each
// thread MAY own its own (implementation choice, per spec.md §4.2's
// Open Questions).
type Cache struct {
	mu      sync.Mutex
	borders map[ObjectiveKey]*border

	hits   int64
	misses int64
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{borders: make(map[ObjectiveKey]*border)}
}

func (c *Cache) borderFor(o ObjectiveKey) *border {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.borders[o]
	if !ok {
		b = &border{}
		c.borders[o] = b
	}
	return b
}

// Check looks up a configuration under the given objective key. It
// returns SAT if some SAT-border element is a superset of cfg, UNSAT if
// some UNSAT-border element is a subset of cfg, else Unknown.
func (c *Cache) Check(cfg Configuration, o ObjectiveKey) Verdict {
	b := c.borderFor(o)
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.sat {
		if subset(cfg, s) {
			c.bump(&c.hits)
			return SAT
		}
	}
	for _, u := range b.unsat {
		if subset(u, cfg) {
			c.bump(&c.hits)
			return UNSAT
		}
	}
	c.bump(&c.misses)
	return Unknown
}

func (c *Cache) bump(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// Add inserts the outcome of cfg under objective key o, preserving the
// border antichain invariants of spec.md §4.1:
//   - inserting a SAT cfg discards existing SAT elements that are
//     strict subsets of cfg, and is skipped entirely if an existing SAT
//     element is already a superset of cfg;
//   - the symmetric rule applies to UNSAT with subset/superset reversed.
func (c *Cache) Add(cfg Configuration, o ObjectiveKey, sat bool) {
	b := c.borderFor(o)
	b.mu.Lock()
	defer b.mu.Unlock()

	if sat {
		for _, s := range b.sat {
			if subset(cfg, s) {
				return // already covered by a superset
			}
		}
		kept := b.sat[:0]
		for _, s := range b.sat {
			if !subset(s, cfg) {
				kept = append(kept, s)
			}
		}
		b.sat = append(kept, cfg)
	} else {
		for _, u := range b.unsat {
			if subset(u, cfg) {
				return // already covered by a subset
			}
		}
		kept := b.unsat[:0]
		for _, u := range b.unsat {
			if !subset(cfg, u) {
				kept = append(kept, u)
			}
		}
		b.unsat = append(kept, cfg)
	}

	size := len(b.sat) + len(b.unsat)
	if size > b.maxSeen {
		b.maxSeen = size
	}
}

// Stats is the telemetry spec.md §4.1 asks for: "Size is tracked for
// telemetry; an implementation may bound it." merrinasp does not bound
// border size, only reports it.
type Stats struct {
	Hits, Misses int64
	Size, Peak   int
}

// Snapshot reports aggregate hit/miss counters and current/peak size
// across every objective key.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	s := Stats{Hits: c.hits, Misses: c.misses}
	c.mu.Unlock()

	for _, b := range c.snapshotBorders() {
		b.mu.RLock()
		s.Size += len(b.sat) + len(b.unsat)
		s.Peak += b.maxSeen
		b.mu.RUnlock()
	}
	return s
}

func (c *Cache) snapshotBorders() []*border {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*border, 0, len(c.borders))
	for _, b := range c.borders {
		out = append(out, b)
	}
	return out
}
