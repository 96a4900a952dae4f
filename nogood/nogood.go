// Package nogood implements spec.md §4.6: translating an existential or
// universal conflict into a nogood — a set of signed solver literals
// that must not simultaneously hold.
package nogood

import (
	"fmt"
	"sort"

	"github.com/kthuillier/merrinasp/core"
)

// Literal is one signed solver literal: Sign true means "sid must be
// true", Sign false means "sid must be false" (spec.md §4.6: "+l" /
// "−l").
type Literal struct {
	SID  core.SID
	Sign bool
}

func (l Literal) String() string {
	if l.Sign {
		return fmt.Sprintf("+%d", l.SID)
	}
	return fmt.Sprintf("-%d", l.SID)
}

// Nogood is a set of signed literals that must not all hold at once,
// per spec.md §4.6.
type Nogood []Literal

// Dedup returns n with duplicate signed literals removed, in ascending
// (sid, sign) order so two logically identical nogoods compare equal
// regardless of the order conflicts were discovered in (spec.md §8's
// determinism property is stated "modulo ordering of literals").
func (n Nogood) Dedup() Nogood {
	seen := make(map[Literal]bool, len(n))
	out := make(Nogood, 0, len(n))
	for _, l := range n {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SID != out[j].SID {
			return out[i].SID < out[j].SID
		}
		return !out[i].Sign && out[j].Sign
	})
	return out
}

// Equal reports whether n and other contain the same signed literals,
// ignoring order.
func (n Nogood) Equal(other Nogood) bool {
	a, b := n.Dedup(), other.Dedup()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RowInfo is the static structure of one registered cid the synthesis
// functions need: its host literal, whether it is the negatively
// signed half of a paired atom, and the condition ids that guard it.
type RowInfo struct {
	SID        core.SID
	Negative   bool
	Conditions []core.CondID
}

// ConditionInfo is the current host-assigned truth of one condition.
type ConditionInfo struct {
	SID  core.SID
	True bool
}

func signFor(true_ bool) bool { return true_ }

// conditionLiterals builds ±sid(condid) for each of conditions, in
// ascending condid order. core.UnconditionalCond carries no host
// literal — it is the always-true guard unconditional terms are
// registered under — so it contributes no literal to the nogood.
func conditionLiterals(conditions []core.CondID, conds map[core.CondID]ConditionInfo) ([]Literal, error) {
	sorted := append([]core.CondID(nil), conditions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]Literal, 0, len(sorted))
	for _, condID := range sorted {
		if condID == core.UnconditionalCond {
			continue
		}
		c, ok := conds[condID]
		if !ok {
			return nil, core.NewProgrammingError("nogood.conditionLiterals", "condition id missing from condition table")
		}
		out = append(out, Literal{SID: c.SID, Sign: signFor(c.True)})
	}
	return out, nil
}

// SynthesizeExistential builds the nogood for an existential conflict:
// for every cid in the unsat core, include +sid(cid), and — for every
// cid except the negatively signed half of a paired atom — ±sid(condid)
// for each of its conditions (spec.md §4.6's "Existential conflict").
func SynthesizeExistential(coreCIDs []core.CID, rows map[core.CID]RowInfo, conds map[core.CondID]ConditionInfo) (Nogood, error) {
	sorted := append([]core.CID(nil), coreCIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	lits := make(Nogood, 0, len(sorted)*2)
	for _, cid := range sorted {
		info, ok := rows[cid]
		if !ok {
			return nil, core.NewProgrammingError("nogood.SynthesizeExistential", "core cid missing from row table")
		}
		lits = append(lits, Literal{SID: info.SID, Sign: true})
		if info.Negative {
			continue
		}
		condLits, err := conditionLiterals(info.Conditions, conds)
		if err != nil {
			return nil, err
		}
		lits = append(lits, condLits...)
	}
	return lits.Dedup(), nil
}

// SynthesizeUniversal builds the nogood for a universal conflict:
// +sid(q) and ±sid(condid) for every condition of the violating
// template q; ±sid(condid) for every condition of each propagated cid
// p; and −sid(u) for each optimum-core cid u (spec.md §4.6's
// "Universal conflict").
func SynthesizeUniversal(violatingCID core.CID, propagated []core.CID, optimumCore []core.CID, rows map[core.CID]RowInfo, conds map[core.CondID]ConditionInfo) (Nogood, error) {
	q, ok := rows[violatingCID]
	if !ok {
		return nil, core.NewProgrammingError("nogood.SynthesizeUniversal", "violating cid missing from row table")
	}

	lits := make(Nogood, 0, 4+len(propagated)+len(optimumCore))
	lits = append(lits, Literal{SID: q.SID, Sign: true})

	qCondLits, err := conditionLiterals(q.Conditions, conds)
	if err != nil {
		return nil, err
	}
	lits = append(lits, qCondLits...)

	sortedP := append([]core.CID(nil), propagated...)
	sort.Slice(sortedP, func(i, j int) bool { return sortedP[i] < sortedP[j] })
	for _, p := range sortedP {
		info, ok := rows[p]
		if !ok {
			return nil, core.NewProgrammingError("nogood.SynthesizeUniversal", "propagated cid missing from row table")
		}
		condLits, err := conditionLiterals(info.Conditions, conds)
		if err != nil {
			return nil, err
		}
		lits = append(lits, condLits...)
	}

	sortedU := append([]core.CID(nil), optimumCore...)
	sort.Slice(sortedU, func(i, j int) bool { return sortedU[i] < sortedU[j] })
	for _, u := range sortedU {
		info, ok := rows[u]
		if !ok {
			return nil, core.NewProgrammingError("nogood.SynthesizeUniversal", "optimum-core cid missing from row table")
		}
		lits = append(lits, Literal{SID: info.SID, Sign: false})
	}

	return lits.Dedup(), nil
}
