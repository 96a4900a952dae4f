package registry

import (
	"sync"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/core"
)

// GroundedVariant is one candidate grounding of a cid: the expression
// that results from a particular non-empty subset of its condition ids
// being true, plus the stable description key for that expression
// under the row's own sense and bound.
type GroundedVariant struct {
	TrueConds []core.CondID
	Expr      atom.Expr
	Key       atom.DescriptionKey
}

// groundedCache memoizes GroundedVariants per cid, adapting the
// teacher's sync.Pool scratch-buffer discipline (sat/pool.go) to reuse
// the []core.CondID working slice across the exponential-in-conditions
// enumeration instead of allocating one per subset.
type groundedCache struct {
	mu    sync.Mutex
	cache map[core.CID][]GroundedVariant

	scratch sync.Pool
}

func newGroundedCache() *groundedCache {
	return &groundedCache{
		cache: make(map[core.CID][]GroundedVariant),
		scratch: sync.Pool{
			New: func() any { return make([]core.CondID, 0, 8) },
		},
	}
}

func (g *groundedCache) variantsFor(cid core.CID, row *atom.Row) []GroundedVariant {
	g.mu.Lock()
	if v, ok := g.cache[cid]; ok {
		g.mu.Unlock()
		return v
	}
	g.mu.Unlock()

	conds := row.ExprByCond.ConditionIDs()
	variants := g.enumerate(conds, row)

	g.mu.Lock()
	g.cache[cid] = variants
	g.mu.Unlock()
	return variants
}

// enumerate walks every non-empty subset of conds iteratively (a bitmask
// counter, not a recursive generator, per spec.md's Design Notes on
// replacing "coroutine-style generators" with an iterative enumerator).
func (g *groundedCache) enumerate(conds []core.CondID, row *atom.Row) []GroundedVariant {
	n := len(conds)
	if n == 0 || n > 20 {
		// A cid with no conditions has exactly one trivial grounding
		// (everything true); guard against pathological condition
		// counts rather than building 2^n variants.
		trueConds := map[core.CondID]bool{}
		for _, c := range conds {
			trueConds[c] = true
		}
		expr := row.ExprByCond.Ground(trueConds)
		return []GroundedVariant{{
			TrueConds: conds,
			Expr:      expr,
			Key:       atom.Describe(expr, row.Sense, row.Bound),
		}}
	}

	buf := g.scratch.Get().([]core.CondID)
	defer func() {
		g.scratch.Put(buf[:0])
	}()

	variants := make([]GroundedVariant, 0, (1<<uint(n))-1)
	trueConds := make(map[core.CondID]bool, n)

	for mask := 1; mask < (1 << uint(n)); mask++ {
		buf = buf[:0]
		for k := range trueConds {
			delete(trueConds, k)
		}
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				buf = append(buf, conds[i])
				trueConds[conds[i]] = true
			}
		}
		expr := row.ExprByCond.Ground(trueConds)
		snapshot := make([]core.CondID, len(buf))
		copy(snapshot, buf)
		variants = append(variants, GroundedVariant{
			TrueConds: snapshot,
			Expr:      expr,
			Key:       atom.Describe(expr, row.Sense, row.Bound),
		})
	}
	return variants
}
