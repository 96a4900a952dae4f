package core

// CID is a constraint id: a stable, signed identifier for one parsed
// constraint row. A paired -CID may coexist when a single atom expands
// to two constraints (equality as two inequalities, or a two-sided
// domain). CID is kept as a plain signed integer and never hashed
// asymmetrically for its positive/negative forms, per spec.md's Design
// Notes ("treat cid as an opaque i64; never hash negative and positive
// separately").
type CID int64

// Negate returns the paired constraint id for a two-row atom.
func (c CID) Negate() CID { return -c }

// SID is a host-solver literal id. Multiple CIDs may share a SID.
type SID int64

// PID is an opaque partition id grouping constraints into one LP
// problem.
type PID string

// CondID identifies a guard literal on a sub-expression of a linear
// term.
type CondID int64

// UnconditionalCond is the condition id every unconditional term list is
// registered under (registry.RegisterDom, and every RegisterSum element
// with no guard). It is always true, independent of any host literal
// assignment, so grounding and readiness checks must treat it as true
// without requiring it to appear in a TrueConditions set.
const UnconditionalCond CondID = 0

// DefaultPID is substituted for the pid argument of an atom whose head
// term omits it, per spec.md §6.
const DefaultPID PID = "default"

// Epsilon is the default tolerance for numeric comparisons against
// LP-engine results, per spec.md §4.2.
const Epsilon = 1e-6
