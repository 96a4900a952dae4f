package atom

import "github.com/kthuillier/merrinasp/core"

// Condition is a solver literal guarding a sub-expression of a linear
// term: (condid, sid, terms), per spec.md §3.
type Condition struct {
	CondID core.CondID
	SID    core.SID
	Terms  Expr
}
