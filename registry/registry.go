// Package registry implements spec.md §4.3: it turns a host-provided,
// already-ground theory atom (the grounder and its AST parser are out
// of scope, per spec.md §1 — this package consumes their output, not
// source text) into one or two immutable atom.Row entries with stable
// cids, and memoizes the grounded-constraint enumeration used by
// partition.Partition.CoreUnsatForall.
package registry

import (
	"sync"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/core"
)

// Element is one (condition id, guarding sid, terms) entry of a theory
// atom, the structural shape clingo's TheoryElement already carries
// once the grounder has run — spec.md §3's Condition type.
type Element struct {
	CondID core.CondID
	SID    core.SID
	Terms  atom.Expr
}

func elementsToCondExpr(elems []Element) atom.CondExpr {
	ce := make(atom.CondExpr, len(elems))
	for _, e := range elems {
		ce[e.CondID] = atom.Merge(ce[e.CondID], e.Terms)
	}
	return ce
}

// Registry parses each theory atom once into the atom.Row rows of
// spec.md §4.3's schema table and assigns stable cids. It is built once
// at host init and is immutable thereafter (spec.md §3's Lifecycle).
type Registry struct {
	mu       sync.Mutex
	nextCID  core.CID
	rows     map[core.CID]*atom.Row
	pidToCID map[core.PID][]core.CID
	sidToCID map[core.SID][]core.CID

	grounded *groundedCache
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		rows:     make(map[core.CID]*atom.Row),
		pidToCID: make(map[core.PID][]core.CID),
		sidToCID: make(map[core.SID][]core.CID),
		grounded: newGroundedCache(),
	}
}

func normalizePID(pid core.PID) core.PID {
	if pid == "" {
		return core.DefaultPID
	}
	return pid
}

func (r *Registry) allocCID() core.CID {
	r.nextCID++
	return r.nextCID
}

func (r *Registry) insert(row *atom.Row) {
	r.rows[row.CID] = row
	r.pidToCID[row.PID] = append(r.pidToCID[row.PID], row.CID)
	r.sidToCID[row.SID] = append(r.sidToCID[row.SID], row.CID)
}

// insertPair registers two rows sharing an sid, pid and expression but
// opposite cid sign and sense, per spec.md §3's "a paired -cid may
// coexist when a single atom expands to two constraints."
func (r *Registry) insertPair(sid core.SID, pid core.PID, kind atom.Kind, ce atom.CondExpr, senseA Sense, boundA float64, senseB Sense, boundB float64) (core.CID, core.CID) {
	cid := r.allocCID()
	rowA := &atom.Row{CID: cid, SID: sid, PID: pid, Kind: kind, ExprByCond: ce, Sense: atom.Sense(senseA), Bound: boundA}
	rowB := &atom.Row{CID: -cid, SID: sid, PID: pid, Kind: kind, ExprByCond: ce, Sense: atom.Sense(senseB), Bound: boundB}
	rowA.MarkPaired()
	rowB.MarkPaired()
	r.insert(rowA)
	r.insert(rowB)
	return cid, -cid
}

// Sense re-exports atom.Sense for callers that only import registry.
type Sense = atom.Sense

const (
	LE = atom.LE
	GE = atom.GE
	EQ = atom.EQ
)

// RegisterDom registers &dom(pid){L..U} = v. L == U registers a single
// equality row; otherwise it registers the two-row >= L / <= U
// expansion of spec.md §4.3.
func (r *Registry) RegisterDom(sid core.SID, pid core.PID, variable string, low, high float64) ([]core.CID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid = normalizePID(pid)
	if low > high {
		return nil, core.NewParseError("registry.RegisterDom", "lower bound exceeds upper bound")
	}
	ce := atom.CondExpr{core.UnconditionalCond: atom.Expr{{Coeff: 1, Var: variable}}}

	if low == high {
		cid := r.allocCID()
		row := &atom.Row{CID: cid, SID: sid, PID: pid, Kind: atom.Exists, ExprByCond: ce, Sense: atom.EQ, Bound: low}
		r.insert(row)
		return []core.CID{cid}, nil
	}

	a, b := r.insertPair(sid, pid, atom.Exists, ce, GE, low, LE, high)
	return []core.CID{a, b}, nil
}

// RegisterSum registers &sum(pid){elements} op b, a single existential
// row.
func (r *Registry) RegisterSum(sid core.SID, pid core.PID, elements []Element, sense Sense, bound float64) (core.CID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid = normalizePID(pid)
	cid := r.allocCID()
	row := &atom.Row{CID: cid, SID: sid, PID: pid, Kind: atom.Exists, ExprByCond: elementsToCondExpr(elements), Sense: sense, Bound: bound}
	r.insert(row)
	return cid, nil
}

// RegisterObjective registers &minimize(pid){elements}@w or
// &maximize(pid){elements}@w. The expression is negated for maximize,
// per spec.md §6 ("direction derived from name; expression flipped if
// maximize"). weight defaults to 0 when the atom carried no @ guard
// (spec.md §6: "Objectives without an @ guard are rewritten to @0.").
func (r *Registry) RegisterObjective(sid core.SID, pid core.PID, elements []Element, maximize bool, weight int) (core.CID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid = normalizePID(pid)
	ce := elementsToCondExpr(elements)
	if maximize {
		for cond, expr := range ce {
			ce[cond] = expr.Scale(-1)
		}
	}

	cid := r.allocCID()
	row := &atom.Row{
		CID: cid, SID: sid, PID: pid, Kind: atom.Objective,
		ExprByCond: ce, Sense: atom.LE, ObjectiveWeight: weight,
	}
	r.insert(row)
	return cid, nil
}

// RegisterAssert registers &assert(pid){elements} op b: one forall row
// for <=, >=, <, >, or two rows (<= and >=) for =, per spec.md §4.3.
// Strict operators < and > are modeled with the same tolerance-based
// comparison as their non-strict counterparts (spec.md's ε-comparisons
// in §4.2 do not distinguish strict from non-strict bounds; this is a
// deliberate simplification).
func (r *Registry) RegisterAssert(sid core.SID, pid core.PID, elements []Element, op string, bound float64) ([]core.CID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid = normalizePID(pid)
	ce := elementsToCondExpr(elements)

	switch op {
	case "<=", "<":
		cid := r.allocCID()
		row := &atom.Row{CID: cid, SID: sid, PID: pid, Kind: atom.Forall, ExprByCond: ce, Sense: atom.LE, Bound: bound}
		r.insert(row)
		return []core.CID{cid}, nil
	case ">=", ">":
		cid := r.allocCID()
		row := &atom.Row{CID: cid, SID: sid, PID: pid, Kind: atom.Forall, ExprByCond: ce, Sense: atom.GE, Bound: bound}
		r.insert(row)
		return []core.CID{cid}, nil
	case "=":
		a, b := r.insertPair(sid, pid, atom.Forall, ce, GE, bound, LE, bound)
		return []core.CID{a, b}, nil
	default:
		return nil, core.NewParseError("registry.RegisterAssert", "unknown guard operator "+op)
	}
}

// Row looks up a registered row by cid.
func (r *Registry) Row(cid core.CID) (*atom.Row, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[cid]
	return row, ok
}

// CIDsForPID returns every cid registered under pid.
func (r *Registry) CIDsForPID(pid core.PID) []core.CID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.CID, len(r.pidToCID[pid]))
	copy(out, r.pidToCID[pid])
	return out
}

// CIDsForSID returns every cid that shares sid, per spec.md §3
// ("multiple cids may share an sid").
func (r *Registry) CIDsForSID(sid core.SID) []core.CID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.CID, len(r.sidToCID[sid]))
	copy(out, r.sidToCID[sid])
	return out
}

// AllCIDs returns every registered cid, used by the propagator to build
// its sid-to-cid watch table at init.
func (r *Registry) AllCIDs() []core.CID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.CID, 0, len(r.rows))
	for cid := range r.rows {
		out = append(out, cid)
	}
	return out
}

// Ground returns the grounded expression for cid under the given
// true-condition set (spec.md §4.3).
func (r *Registry) Ground(cid core.CID, trueConds map[core.CondID]bool) (atom.Expr, error) {
	row, ok := r.Row(cid)
	if !ok {
		return nil, core.NewProgrammingError("registry.Ground", "unregistered cid")
	}
	return row.ExprByCond.Ground(trueConds), nil
}

// GroundedVariants enumerates, for cid, one (expr, descriptionKey) pair
// per non-empty subset of cid's condition ids — each subset is one
// candidate "grounding" a not-yet-propagated atom could take during
// core_unsat_forall's candidate search (spec.md §4.2, §4.3). The
// enumeration depends only on the static condition-id set, not on
// current truth values, so it is memoized per cid (spec.md §4.3:
// "This enumeration is memoized per cid").
func (r *Registry) GroundedVariants(cid core.CID) []GroundedVariant {
	row, ok := r.Row(cid)
	if !ok {
		return nil
	}
	return r.grounded.variantsFor(cid, row)
}
