package theory

import (
	"testing"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/lpengine"
	"github.com/kthuillier/merrinasp/lpengine/simplex"
	"github.com/kthuillier/merrinasp/nogood"
	"github.com/kthuillier/merrinasp/propagator"
	"github.com/kthuillier/merrinasp/registry"
)

func newTestSystem() *System {
	return New(Options{EngineFactory: func() lpengine.Engine { return simplex.New() }})
}

func TestNewPanicsWithoutEngineFactory(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New() did not panic with nil EngineFactory")
		}
	}()
	New(Options{})
}

// End-to-end scenario (b) through the facade: registering a pair of
// conflicting &sum atoms and propagating both true should hand one
// nogood to the host.
func TestCheckerEndToEndExistentialConflict(t *testing.T) {
	sys := newTestSystem()
	reg := sys.Registry()

	a, err := reg.RegisterSum(100, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 3)
	if err != nil {
		t.Fatalf("RegisterSum(a) error = %v", err)
	}
	b, err := reg.RegisterSum(101, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.LE, 1)
	if err != nil {
		t.Fatalf("RegisterSum(b) error = %v", err)
	}
	_ = a
	_ = b

	var received []string
	checker := sys.NewChecker(nil, func(ng nogood.Nogood, lock bool) bool {
		received = append(received, NogoodString(ng))
		return true
	})

	err = checker.Propagate([]propagator.LiteralChange{{SID: 100, Value: true}, {SID: 101, Value: true}})
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("received %d nogoods, want 1", len(received))
	}
}

func TestCacheStatsReflectsSharedCacheAcrossCheckers(t *testing.T) {
	sys := newTestSystem()
	reg := sys.Registry()
	a, _ := reg.RegisterDom(1, "", "x", 0, 10)
	sumCID, _ := reg.RegisterSum(2, "", []registry.Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}, atom.GE, 5)

	checker1 := sys.NewChecker(nil, func(nogood.Nogood, bool) bool { return true })
	if err := checker1.Propagate([]propagator.LiteralChange{{SID: 1, Value: true}, {SID: 2, Value: true}}); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	checker2 := sys.NewChecker(nil, func(nogood.Nogood, bool) bool { return true })
	if err := checker2.Propagate([]propagator.LiteralChange{{SID: 1, Value: true}, {SID: 2, Value: true}}); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}

	st := sys.CacheStats()
	if st.Hits+st.Misses == 0 {
		t.Error("CacheStats() reported no activity across checkers sharing the system cache")
	}
	_ = a
	_ = sumCID
}
