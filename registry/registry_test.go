package registry

import (
	"testing"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/core"
)

func TestRegisterDomEqualitySingleRow(t *testing.T) {
	r := New()
	cids, err := r.RegisterDom(1, "", "x", 3, 3)
	if err != nil {
		t.Fatalf("RegisterDom() error = %v", err)
	}
	if len(cids) != 1 {
		t.Fatalf("RegisterDom() = %d rows, want 1 for L==U", len(cids))
	}
	row, _ := r.Row(cids[0])
	if row.Sense != atom.EQ || row.Bound != 3 || row.PID != core.DefaultPID {
		t.Errorf("row = %+v, want EQ 3 on default pid", row)
	}
}

func TestRegisterDomRangeExpandsToPair(t *testing.T) {
	r := New()
	cids, err := r.RegisterDom(1, "p", "x", 0, 10)
	if err != nil {
		t.Fatalf("RegisterDom() error = %v", err)
	}
	if len(cids) != 2 || cids[1] != -cids[0] {
		t.Fatalf("RegisterDom() cids = %v, want a pair (c, -c)", cids)
	}
	rowA, _ := r.Row(cids[0])
	rowB, _ := r.Row(cids[1])
	if rowA.Sense != atom.GE || rowA.Bound != 0 {
		t.Errorf("first row = %+v, want >= 0", rowA)
	}
	if rowB.Sense != atom.LE || rowB.Bound != 10 {
		t.Errorf("second row = %+v, want <= 10", rowB)
	}
	if !rowA.Paired() || !rowB.Paired() {
		t.Error("expected both rows to report Paired()")
	}
}

func TestRegisterObjectiveNegatesMaximize(t *testing.T) {
	r := New()
	elems := []Element{{CondID: 0, Terms: atom.Expr{{Coeff: 2, Var: "x"}}}}

	cid, err := r.RegisterObjective(1, "", elems, true, 0)
	if err != nil {
		t.Fatalf("RegisterObjective() error = %v", err)
	}
	row, _ := r.Row(cid)
	got := row.ExprByCond[0]
	if len(got) != 1 || got[0].Coeff != -2 {
		t.Errorf("maximize objective expr = %v, want coefficient negated to -2", got)
	}
}

func TestRegisterAssertEqualityExpandsToPair(t *testing.T) {
	r := New()
	elems := []Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}

	cids, err := r.RegisterAssert(1, "", elems, "=", 4)
	if err != nil {
		t.Fatalf("RegisterAssert() error = %v", err)
	}
	if len(cids) != 2 {
		t.Fatalf("RegisterAssert(=) rows = %d, want 2", len(cids))
	}
	rowA, _ := r.Row(cids[0])
	rowB, _ := r.Row(cids[1])
	if rowA.Kind != atom.Forall || rowB.Kind != atom.Forall {
		t.Errorf("expected both rows to be Forall, got %v %v", rowA.Kind, rowB.Kind)
	}
}

func TestRegisterAssertUnknownOperator(t *testing.T) {
	r := New()
	_, err := r.RegisterAssert(1, "", nil, "~=", 0)
	if err == nil {
		t.Fatal("expected a parse error for an unknown guard operator")
	}
}

func TestCIDsForPIDAndSID(t *testing.T) {
	r := New()
	elems := []Element{{CondID: 0, Terms: atom.Expr{{Coeff: 1, Var: "x"}}}}
	cid, _ := r.RegisterSum(5, "p1", elems, atom.GE, 1)

	if got := r.CIDsForPID("p1"); len(got) != 1 || got[0] != cid {
		t.Errorf("CIDsForPID(p1) = %v, want [%v]", got, cid)
	}
	if got := r.CIDsForSID(5); len(got) != 1 || got[0] != cid {
		t.Errorf("CIDsForSID(5) = %v, want [%v]", got, cid)
	}
}

func TestGroundedVariantsEnumeratesNonEmptySubsets(t *testing.T) {
	r := New()
	elems := []Element{
		{CondID: 1, Terms: atom.Expr{{Coeff: 1, Var: "x"}}},
		{CondID: 2, Terms: atom.Expr{{Coeff: 1, Var: "y"}}},
	}
	cid, _ := r.RegisterSum(1, "", elems, atom.GE, 1)

	variants := r.GroundedVariants(cid)
	if len(variants) != 3 { // {1}, {2}, {1,2}
		t.Fatalf("GroundedVariants() = %d variants, want 3", len(variants))
	}

	// Memoized: a second call must return the same slice without
	// recomputation (observable as pointer/content equality here).
	again := r.GroundedVariants(cid)
	if len(again) != len(variants) || &again[0] != &variants[0] {
		t.Errorf("GroundedVariants() not memoized consistently")
	}
}

func TestGroundOnUnregisteredCIDIsProgrammingError(t *testing.T) {
	r := New()
	_, err := r.Ground(999, nil)
	if err == nil {
		t.Fatal("expected an error grounding an unregistered cid")
	}
}
