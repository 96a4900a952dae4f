// Package lpengine is the narrow capability interface over an LP
// engine that spec.md §2 calls for: "uniform interface over one or
// more LP engines: variables, constraints, objective, solve, primal
// readout." Concrete engines live in subpackages (lpengine/simplex is
// the default); callers select one by name via the CLI's --lp-solver
// flag (spec.md §6).
//
// The LP engine's own numerical method is an out-of-scope external
// collaborator (spec.md §1): this package owns only the adapter
// around it, matching the Design Notes' "keep LP handles opaque."
package lpengine

import "github.com/kthuillier/merrinasp/atom"

// VarHandle is an opaque reference to an LP-engine variable.
type VarHandle int

// ConstraintHandle is an opaque reference to an LP-engine constraint.
type ConstraintHandle int

// Status is the outcome of a Solve call. StatusUndefined is a fatal
// implementation error per spec.md §4.2/§7 and must never be silently
// absorbed by a caller.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusUndefined
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "undefined"
	}
}

// Result is the outcome of a Solve call. Objective is only meaningful
// when Status is StatusOptimal.
type Result struct {
	Status    Status
	Objective float64
}

// Engine is the capability set every LP backend must expose:
// {new_var, new_constraint, remove_constraint, set_objective, solve,
// primal(var)}, per spec.md's Design Notes. Variables are lazily
// introduced: Var(name) creates the variable on first use and returns
// its handle on later calls, matching the partition model's "new
// variables are lazily introduced" (spec.md §3). An engine that prunes
// unused variables (simplex) may renumber the remaining handles after
// RemoveConstraint.
type Engine interface {
	// Name identifies the engine for the --lp-solver CLI flag and for
	// statistics/logging.
	Name() string

	// Var returns the handle for name, creating it on first use.
	Var(name string) VarHandle

	// AddConstraint materializes expr sense bound as an LP constraint
	// and returns a handle used to remove it later.
	AddConstraint(expr atom.Expr, sense atom.Sense, bound float64) ConstraintHandle

	// RemoveConstraint deletes a previously added constraint. Removing
	// a handle that was never added, or was already removed, is a
	// programming error.
	RemoveConstraint(h ConstraintHandle)

	// SetObjective replaces the current objective. minimize selects the
	// optimization direction; expr may be empty to solve for
	// feasibility only (the "default, zero objective" of spec.md
	// §4.2's check_exists).
	SetObjective(expr atom.Expr, minimize bool)

	// ClearObjective removes the objective, reverting to a feasibility
	// check.
	ClearObjective()

	// Solve runs the engine and returns its outcome.
	Solve() Result

	// Primal returns the value the last Solve assigned to v. The
	// second return is false if v has no value (Solve did not reach
	// StatusOptimal).
	Primal(v VarHandle) (float64, bool)

	// NumVars reports how many variables the engine currently holds,
	// for statistics and for pruning unused variables after a
	// constraint removal (spec.md §4.2's Open Questions note this is
	// implementation-defined; merrinasp's simplex engine does prune).
	NumVars() int
}
