package propagator

import (
	"testing"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/cache"
	"github.com/kthuillier/merrinasp/core"
	"github.com/kthuillier/merrinasp/dispatcher"
	"github.com/kthuillier/merrinasp/lpengine"
	"github.com/kthuillier/merrinasp/lpengine/simplex"
	"github.com/kthuillier/merrinasp/nogood"
	"github.com/kthuillier/merrinasp/registry"
)

func newTestChecker(reg *registry.Registry, conds []atom.Condition, accepted *[]nogood.Nogood) *Checker {
	disp := dispatcher.New(reg, cache.New(), func() lpengine.Engine { return simplex.New() }, false, false)
	addNogood := func(ng nogood.Nogood, lock bool) bool {
		*accepted = append(*accepted, ng)
		return true
	}
	return New(reg, conds, disp, Config{}, addNogood, nil)
}

// Scenario (b): a: &sum{x} >= 3, b: &sum{x} <= 1, watched literal sids
// both assigned true in one Propagate call. Expected: the conflict
// nogood is queued and handed to addNogood.
func TestPropagateReportsExistentialConflictToHost(t *testing.T) {
	reg := registry.New()
	a, err := reg.RegisterSum(100, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 3)
	if err != nil {
		t.Fatalf("RegisterSum(a) error = %v", err)
	}
	b, err := reg.RegisterSum(101, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.LE, 1)
	if err != nil {
		t.Fatalf("RegisterSum(b) error = %v", err)
	}

	var accepted []nogood.Nogood
	c := newTestChecker(reg, nil, &accepted)

	err = c.Propagate([]LiteralChange{{SID: 100, Value: true}, {SID: 101, Value: true}})
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	if len(accepted) != 1 {
		t.Fatalf("addNogood called %d times, want 1", len(accepted))
	}
	if len(accepted[0]) != 2 {
		t.Fatalf("nogood = %v, want 2 literals", accepted[0])
	}
	_ = a
	_ = b
}

// Scenario (a): &dom{0..10}=x, &sum{x} >= 5, both watched literals
// assigned true. Expected: no nogood is ever handed to the host.
func TestPropagateFeasibleProducesNoNogood(t *testing.T) {
	reg := registry.New()
	domCIDs, err := reg.RegisterDom(1, "", "x", 0, 10)
	if err != nil {
		t.Fatalf("RegisterDom() error = %v", err)
	}
	_, err = reg.RegisterSum(2, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 5)
	if err != nil {
		t.Fatalf("RegisterSum() error = %v", err)
	}

	var accepted []nogood.Nogood
	c := newTestChecker(reg, nil, &accepted)

	err = c.Propagate([]LiteralChange{{SID: 1, Value: true}, {SID: 2, Value: true}})
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if len(accepted) != 0 {
		t.Fatalf("accepted = %v, want none", accepted)
	}
	_ = domCIDs
}

// Undo of every watched literal for a cid clears its incorporated bit
// and its cidValue/condValue entries, without erroring even when the
// cid was never actually incorporated into the dispatcher.
func TestUndoOfUnpropagatedChangeIsNoop(t *testing.T) {
	reg := registry.New()
	_, err := reg.RegisterSum(1, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 1)
	if err != nil {
		t.Fatalf("RegisterSum() error = %v", err)
	}

	var accepted []nogood.Nogood
	c := newTestChecker(reg, nil, &accepted)

	if err := c.Undo([]LiteralChange{{SID: 1, Value: true}}); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
}

// Check (lazy mode) incorporates a synthetic batch and self-undoes it
// afterward, leaving no incorporated cid behind — but the host still
// receives the conflict nogood discovered during the synthetic check.
func TestCheckSelfUndoesSyntheticBatch(t *testing.T) {
	reg := registry.New()
	_, err := reg.RegisterSum(100, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 3)
	if err != nil {
		t.Fatalf("RegisterSum(a) error = %v", err)
	}
	_, err = reg.RegisterSum(101, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.LE, 1)
	if err != nil {
		t.Fatalf("RegisterSum(b) error = %v", err)
	}

	var accepted []nogood.Nogood
	c := newTestChecker(reg, nil, &accepted)

	err = c.Check([]LiteralChange{{SID: 100, Value: true}, {SID: 101, Value: true}})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("addNogood called %d times, want 1", len(accepted))
	}
	if len(c.incorporated) != 0 {
		t.Errorf("incorporated = %v, want empty after Check self-undo", c.incorporated)
	}
	if len(c.cidValue) != 0 {
		t.Errorf("cidValue = %v, want empty after Check self-undo", c.cidValue)
	}
}

// A rejected nogood must stop the queue drain and leave the remainder
// queued (spec.md §7's host-rejection policy), without surfacing an
// error to the caller.
func TestRejectedNogoodStopsQueueDrain(t *testing.T) {
	reg := registry.New()
	_, err := reg.RegisterSum(100, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 3)
	if err != nil {
		t.Fatalf("RegisterSum(a) error = %v", err)
	}
	_, err = reg.RegisterSum(101, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.LE, 1)
	if err != nil {
		t.Fatalf("RegisterSum(b) error = %v", err)
	}

	disp := dispatcher.New(reg, cache.New(), func() lpengine.Engine { return simplex.New() }, false, false)
	calls := 0
	rejecting := func(ng nogood.Nogood, lock bool) bool {
		calls++
		return false
	}
	c := New(reg, nil, disp, Config{}, rejecting, nil)

	if err := c.Propagate([]LiteralChange{{SID: 100, Value: true}, {SID: 101, Value: true}}); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("addNogood called %d times, want 1", calls)
	}
	if len(c.queue) != 1 {
		t.Fatalf("queue = %v, want 1 nogood left queued", c.queue)
	}
}

// WatchedLiterals returns a sorted, deduplicated sid list across both
// cid sids and condition sids.
func TestWatchedLiteralsIsSortedAndDeduped(t *testing.T) {
	reg := registry.New()
	_, err := reg.RegisterSum(core.SID(5), "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 1)
	if err != nil {
		t.Fatalf("RegisterSum() error = %v", err)
	}
	conds := []atom.Condition{{CondID: 7, SID: core.SID(2), Terms: atom.Expr{}}}

	var accepted []nogood.Nogood
	c := newTestChecker(reg, conds, &accepted)

	got := c.WatchedLiterals()
	want := []core.SID{2, 5}
	if len(got) != len(want) {
		t.Fatalf("WatchedLiterals() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("WatchedLiterals() = %v, want %v", got, want)
		}
	}
}
