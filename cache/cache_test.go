package cache

import (
	"testing"

	"github.com/kthuillier/merrinasp/atom"
)

func keys(n ...int) Configuration {
	ks := make([]atom.DescriptionKey, len(n))
	for i, v := range n {
		ks[i] = atom.DescriptionKey(v)
	}
	return NewConfiguration(ks)
}

func TestCacheUnknownWhenEmpty(t *testing.T) {
	c := New()
	if got := c.Check(keys(1, 2), NoObjective); got != Unknown {
		t.Errorf("Check() = %v, want Unknown", got)
	}
}

func TestCacheSatSupersetLookup(t *testing.T) {
	c := New()
	c.Add(keys(1, 2, 3), NoObjective, true)

	if got := c.Check(keys(1, 2), NoObjective); got != SAT {
		t.Errorf("subset of a SAT config should report SAT, got %v", got)
	}
	if got := c.Check(keys(1, 2, 3, 4), NoObjective); got != Unknown {
		t.Errorf("superset of a SAT config is not implied SAT, got %v", got)
	}
}

func TestCacheUnsatSubsetLookup(t *testing.T) {
	c := New()
	c.Add(keys(1, 2), NoObjective, false)

	if got := c.Check(keys(1, 2, 3), NoObjective); got != UNSAT {
		t.Errorf("superset of an UNSAT config should report UNSAT, got %v", got)
	}
	if got := c.Check(keys(1), NoObjective); got != Unknown {
		t.Errorf("subset of an UNSAT config is not implied UNSAT, got %v", got)
	}
}

// TestCacheBorderIsAntichain exercises spec.md testable property #2:
// "Borders are antichains" — inserting a SAT configuration that is a
// superset of an existing SAT entry should discard the smaller one;
// inserting one that is a subset of an existing entry should be a
// no-op, never growing the border with a dominated element.
func TestCacheBorderIsAntichain(t *testing.T) {
	c := New()
	c.Add(keys(1, 2), NoObjective, true)
	c.Add(keys(1, 2, 3), NoObjective, true)

	b := c.borderFor(NoObjective)
	if len(b.sat) != 1 {
		t.Fatalf("expected the smaller SAT config to be discarded, got %d entries", len(b.sat))
	}

	c.Add(keys(1), NoObjective, true)
	b = c.borderFor(NoObjective)
	if len(b.sat) != 1 {
		t.Fatalf("expected insertion of a dominated config to be a no-op, got %d entries", len(b.sat))
	}
}

func TestCacheObjectiveKeysAreIsolated(t *testing.T) {
	c := New()
	o1 := ObjectiveKeyOf(atom.DescriptionKey(100))
	c.Add(keys(1, 2), o1, true)

	if got := c.Check(keys(1, 2), NoObjective); got != Unknown {
		t.Errorf("objective-keyed entries must not leak into NoObjective, got %v", got)
	}
	if got := c.Check(keys(1, 2), o1); got != SAT {
		t.Errorf("Check() under matching objective key = %v, want SAT", got)
	}
}

func TestCacheSnapshotTracksSizeAndPeak(t *testing.T) {
	c := New()
	c.Add(keys(1), NoObjective, true)
	c.Add(keys(2), NoObjective, false)
	c.Check(keys(1), NoObjective)
	c.Check(keys(9), NoObjective)

	snap := c.Snapshot()
	if snap.Hits != 1 || snap.Misses != 1 {
		t.Errorf("Snapshot() hits/misses = %d/%d, want 1/1", snap.Hits, snap.Misses)
	}
	if snap.Size != 2 {
		t.Errorf("Snapshot().Size = %d, want 2", snap.Size)
	}
	if snap.Peak != 2 {
		t.Errorf("Snapshot().Peak = %d, want 2", snap.Peak)
	}
}
