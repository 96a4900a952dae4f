package simplex

import (
	"math"
	"testing"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/lpengine"
)

func expr(terms ...atom.Term) atom.Expr { return atom.Expr(terms) }

// TestDomainAndSumFeasible is spec.md §8 scenario (a): &dom{0..10}=x,
// &sum{x} >= 5 should be SAT with optimum x in [5, 10].
func TestDomainAndSumFeasible(t *testing.T) {
	e := New()
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.LE, 10)
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.GE, 0)
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.GE, 5)

	res := e.Solve()
	if res.Status != lpengine.StatusOptimal {
		t.Fatalf("Solve() status = %v, want optimal", res.Status)
	}
}

// TestInfeasiblePair is spec.md §8 scenario (b): x >= 3 and x <= 1
// simultaneously must be infeasible.
func TestInfeasiblePair(t *testing.T) {
	e := New()
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.GE, 3)
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.LE, 1)

	res := e.Solve()
	if res.Status != lpengine.StatusInfeasible {
		t.Fatalf("Solve() status = %v, want infeasible", res.Status)
	}
}

// TestEqualityDomain is spec.md §8 scenario (f): &dom{3..3}=x,
// &sum{x} >= 3 should be SAT with x == 3.
func TestEqualityDomain(t *testing.T) {
	e := New()
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.EQ, 3)
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.GE, 3)

	res := e.Solve()
	if res.Status != lpengine.StatusOptimal {
		t.Fatalf("Solve() status = %v, want optimal", res.Status)
	}
	v := e.Var("x")
	x, ok := e.Primal(v)
	if !ok || math.Abs(x-3) > 1e-6 {
		t.Errorf("Primal(x) = %v (ok=%v), want 3", x, ok)
	}
}

func TestMinimizeObjective(t *testing.T) {
	e := New()
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.LE, 10)
	e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.GE, 4)
	e.SetObjective(expr(atom.Term{Coeff: 1, Var: "x"}), true)

	res := e.Solve()
	if res.Status != lpengine.StatusOptimal {
		t.Fatalf("Solve() status = %v, want optimal", res.Status)
	}
	if math.Abs(res.Objective-4) > 1e-6 {
		t.Errorf("Objective = %v, want 4", res.Objective)
	}
}

func TestRemoveConstraintPrunesVariables(t *testing.T) {
	e := New()
	h := e.AddConstraint(expr(atom.Term{Coeff: 1, Var: "x"}), atom.GE, 0)
	e.Var("y")
	if e.NumVars() != 2 {
		t.Fatalf("NumVars() = %d, want 2", e.NumVars())
	}
	e.RemoveConstraint(h)
	if e.NumVars() != 0 {
		t.Errorf("NumVars() after remove = %d, want 0 (neither x nor y is referenced by a row or the objective)", e.NumVars())
	}
}

func TestNoConstraintsWithZeroObjectiveIsOptimal(t *testing.T) {
	e := New()
	res := e.Solve()
	if res.Status != lpengine.StatusOptimal {
		t.Errorf("Solve() on an empty problem = %v, want optimal", res.Status)
	}
}
