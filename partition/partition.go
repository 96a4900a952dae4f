// Package partition implements spec.md §4.2: one incremental LP problem
// per partition id. A Partition owns a single lpengine.Engine instance
// and the active existential constraints, universal (forall) templates,
// and user objectives registered against it, and answers check_exists,
// check_forall, optimize, and the two core-extraction queries.
package partition

import (
	"sort"
	"sync"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/cache"
	"github.com/kthuillier/merrinasp/core"
	"github.com/kthuillier/merrinasp/lpengine"
)

// Update is one add/refresh of an existential, universal, or objective
// entry, per spec.md §4.2's update(updates). Re-applying the same CID
// replaces its previous entry.
type Update struct {
	CID    core.CID
	Kind   atom.Kind
	Expr   atom.Expr
	Sense  atom.Sense
	Bound  float64
	Weight int // meaningful only when Kind == atom.Objective
}

type existsEntry struct {
	handle lpengine.ConstraintHandle
	expr   atom.Expr
	sense  atom.Sense
	bound  float64
}

type forallEntry struct {
	expr  atom.Expr
	sense atom.Sense
	bound float64
}

type objectiveEntry struct {
	expr   atom.Expr
	weight int
}

// Grounding is one candidate expression a not-yet-propagated cid could
// take under some non-empty subset of its conditions, paired with the
// stable key registry.GroundedVariant assigns it.
type Grounding struct {
	Expr atom.Expr
	Key  atom.DescriptionKey
}

// CandidateGroup is one not-yet-propagated cid and its alternative
// groundings, the "unpropagated group" of spec.md §4.2's
// core_unsat_forall.
type CandidateGroup struct {
	CID        core.CID
	Sense      atom.Sense
	Bound      float64
	Groundings []Grounding
}

// Assignment is a variable-name to value primal readout, spec.md §4.2's
// optimize() result.
type Assignment map[string]float64

// Partition is one per-pid incremental LP problem. It is not safe for
// concurrent use by multiple goroutines without external coordination
// beyond its own mutex — the mutex guards bookkeeping consistency, not
// cross-call atomicity, matching spec.md §5's "LP engine handles are
// never shared across threads."
type Partition struct {
	mu sync.Mutex

	engine lpengine.Engine
	cache  *cache.Cache

	constraints     map[core.CID]existsEntry
	forallTemplates map[core.CID]forallEntry
	objectives      map[core.CID]objectiveEntry

	descriptions map[core.CID]atom.DescriptionKey

	checkedExists bool
	checkedForall bool
}

// New creates an empty Partition over engine, sharing cache c (which
// may itself be shared across partitions and threads, or per-thread;
// spec.md §4.2's Lifecycle leaves this to the caller).
func New(engine lpengine.Engine, c *cache.Cache) *Partition {
	return &Partition{
		engine:                engine,
		cache:                 c,
		constraints:           make(map[core.CID]existsEntry),
		forallTemplates:       make(map[core.CID]forallEntry),
		objectives:            make(map[core.CID]objectiveEntry),
		descriptions: make(map[core.CID]atom.DescriptionKey),
	}
}

// EngineName reports the backing LP engine's name, for statistics and
// --show-lp-assignment output.
func (p *Partition) EngineName() string { return p.engine.Name() }

// IsEmpty reports whether the partition has no active entries of any
// kind (spec.md §3 Invariant 3: a pid's model is non-empty iff at
// least one of its cids is currently propagated).
func (p *Partition) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.constraints) == 0 && len(p.forallTemplates) == 0 && len(p.objectives) == 0
}

// NeedsExistsCheck reports whether the partition has been mutated since
// its last successful CheckExists (spec.md §4.2's checked_exists flag).
func (p *Partition) NeedsExistsCheck() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.checkedExists
}

// NeedsForallCheck reports whether the partition has been mutated since
// its last successful CheckForall (spec.md §4.2's checked_forall flag).
func (p *Partition) NeedsForallCheck() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.checkedForall
}

// Update adds or replaces the existential, universal, or objective
// entry for each u.CID, normalizing universal sense to >= by negating
// coefficients and bound when registered as <= (spec.md §4.2's "Sense
// normalization"). Any check performed before Update is invalidated.
func (p *Partition) Update(updates []Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range updates {
		switch u.Kind {
		case atom.Exists:
			if old, ok := p.constraints[u.CID]; ok {
				p.engine.RemoveConstraint(old.handle)
			}
			h := p.engine.AddConstraint(u.Expr, u.Sense, u.Bound)
			p.constraints[u.CID] = existsEntry{handle: h, expr: u.Expr, sense: u.Sense, bound: u.Bound}
			p.descriptions[u.CID] = atom.Describe(u.Expr, u.Sense, u.Bound)

		case atom.Forall:
			expr, sense, bound := u.Expr, u.Sense, u.Bound
			if sense == atom.LE {
				expr, sense, bound = expr.Scale(-1), atom.GE, -bound
			}
			p.forallTemplates[u.CID] = forallEntry{expr: expr, sense: sense, bound: bound}
			p.descriptions[u.CID] = atom.Describe(expr, sense, bound)

		case atom.Objective:
			p.objectives[u.CID] = objectiveEntry{expr: u.Expr, weight: u.Weight}
			p.descriptions[u.CID] = atom.Describe(u.Expr, atom.LE, 0)

		default:
			return core.NewProgrammingError("partition.Update", "unknown atom kind")
		}
	}
	p.checkedExists = false
	p.checkedForall = false
	return nil
}

// Remove deletes the entry for each cid (whichever of {constraints,
// forallTemplates, objectives} it belongs to). Removing a cid present
// in none of them is a programming error, per spec.md §7.
func (p *Partition) Remove(cids []core.CID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cid := range cids {
		if entry, ok := p.constraints[cid]; ok {
			p.engine.RemoveConstraint(entry.handle)
			delete(p.constraints, cid)
		} else if _, ok := p.forallTemplates[cid]; ok {
			delete(p.forallTemplates, cid)
		} else if _, ok := p.objectives[cid]; ok {
			delete(p.objectives, cid)
		} else {
			return core.NewProgrammingError("partition.Remove", "cid not present in constraints, forall templates, or objectives")
		}
		delete(p.descriptions, cid)
	}
	p.checkedExists = false
	p.checkedForall = false
	return nil
}

func (p *Partition) configuration() cache.Configuration {
	keys := make([]atom.DescriptionKey, 0, len(p.constraints))
	for _, e := range p.constraints {
		keys = append(keys, atom.Describe(e.expr, e.sense, e.bound))
	}
	return cache.NewConfiguration(keys)
}

// CheckExists answers spec.md §4.2's check_exists(): cached feasibility
// of the active existential constraints under the default (zero)
// objective.
func (p *Partition) CheckExists() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := p.configuration()
	if v := p.cache.Check(cfg, cache.NoObjective); v != cache.Unknown {
		p.checkedExists = true
		return v == cache.SAT, nil
	}

	p.engine.ClearObjective()
	result := p.engine.Solve()
	switch result.Status {
	case lpengine.StatusOptimal:
		p.cache.Add(cfg, cache.NoObjective, true)
		p.checkedExists = true
		return true, nil
	case lpengine.StatusInfeasible:
		p.cache.Add(cfg, cache.NoObjective, false)
		p.checkedExists = true
		return false, nil
	default:
		return false, core.NewFatalError("partition.CheckExists", "LP engine returned undefined status")
	}
}

// CheckForall answers spec.md §4.2's check_forall(): the cids of every
// registered universal template whose worst-case optimum violates its
// bound. An infeasible existential region vacuously satisfies every
// template in the partition, short-circuiting the remaining templates.
func (p *Partition) CheckForall() ([]core.CID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cids := make([]core.CID, 0, len(p.forallTemplates))
	for cid := range p.forallTemplates {
		cids = append(cids, cid)
	}
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })

	violated := make([]core.CID, 0)
	for _, cid := range cids {
		t := p.forallTemplates[cid]
		p.engine.SetObjective(t.expr, true)
		result := p.engine.Solve()

		switch result.Status {
		case lpengine.StatusInfeasible:
			p.engine.ClearObjective()
			p.checkedForall = true
			return nil, nil
		case lpengine.StatusUnbounded:
			violated = append(violated, cid)
		case lpengine.StatusOptimal:
			if result.Objective < t.bound-core.Epsilon {
				violated = append(violated, cid)
			}
		default:
			p.engine.ClearObjective()
			return nil, core.NewFatalError("partition.CheckForall", "LP engine returned undefined status")
		}
	}
	p.engine.ClearObjective()
	p.checkedForall = true
	return violated, nil
}

// Optimize answers spec.md §4.2's optimize(): lexicographic
// optimization over objectives sorted by ascending weight, each level's
// optimum frozen as an equality constraint before moving to the next.
// All frozen constraints are removed before returning.
func (p *Partition) Optimize() (lpengine.Status, Assignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	weights := make([]int, 0)
	seen := make(map[int]bool)
	for _, o := range p.objectives {
		if !seen[o.weight] {
			seen[o.weight] = true
			weights = append(weights, o.weight)
		}
	}
	sort.Ints(weights)

	var frozen []lpengine.ConstraintHandle
	cleanup := func() {
		for _, h := range frozen {
			p.engine.RemoveConstraint(h)
		}
		p.engine.ClearObjective()
	}

	if len(weights) == 0 {
		p.engine.ClearObjective()
		result := p.engine.Solve()
		switch result.Status {
		case lpengine.StatusOptimal:
			return lpengine.StatusOptimal, p.readAssignment(), nil
		case lpengine.StatusInfeasible, lpengine.StatusUnbounded:
			return result.Status, nil, nil
		default:
			return lpengine.StatusUndefined, nil, core.NewFatalError("partition.Optimize", "LP engine returned undefined status")
		}
	}

	for _, w := range weights {
		var exprs []atom.Expr
		for _, o := range p.objectives {
			if o.weight == w {
				exprs = append(exprs, o.expr)
			}
		}
		merged := atom.Merge(exprs...)
		p.engine.SetObjective(merged, true)
		result := p.engine.Solve()

		switch result.Status {
		case lpengine.StatusOptimal:
			h := p.engine.AddConstraint(merged, atom.EQ, result.Objective)
			frozen = append(frozen, h)
		case lpengine.StatusInfeasible, lpengine.StatusUnbounded:
			status := result.Status
			cleanup()
			return status, nil, nil
		default:
			cleanup()
			return lpengine.StatusUndefined, nil, core.NewFatalError("partition.Optimize", "LP engine returned undefined status")
		}
	}

	assignment := p.readAssignment()
	cleanup()
	return lpengine.StatusOptimal, assignment, nil
}

func (p *Partition) readAssignment() Assignment {
	assignment := make(Assignment)
	for _, name := range p.activeVarNames() {
		if v, ok := p.engine.Primal(p.engine.Var(name)); ok {
			assignment[name] = v
		}
	}
	return assignment
}

func (p *Partition) activeVarNames() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(e atom.Expr) {
		for _, t := range e {
			if !seen[t.Var] {
				seen[t.Var] = true
				out = append(out, t.Var)
			}
		}
	}
	for _, e := range p.constraints {
		add(e.expr)
	}
	for _, t := range p.forallTemplates {
		add(t.expr)
	}
	for _, o := range p.objectives {
		add(o.expr)
	}
	sort.Strings(out)
	return out
}

// CoreUnsatExists answers spec.md §4.2's core_unsat_exists(lazy). In
// lazy mode it returns every active existential cid undiminished;
// otherwise it runs the deletion-filter algorithm: each cid is
// temporarily removed and the partition re-solved. A cid whose removal
// does not restore feasibility is dropped permanently from the trial
// (it is not part of the minimal core); a cid whose removal restores
// feasibility is re-added and marked essential. Every permanently
// dropped cid is restored before returning, so the partition's real
// state is unchanged by this query.
func (p *Partition) CoreUnsatExists(lazy bool) ([]core.CID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cids := make([]core.CID, 0, len(p.constraints))
	for cid := range p.constraints {
		cids = append(cids, cid)
	}
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })

	if lazy {
		return cids, nil
	}

	essential := make(map[core.CID]bool, len(cids))
	dropped := make(map[core.CID]existsEntry)

	restoreDropped := func() {
		for cid, entry := range dropped {
			h := p.engine.AddConstraint(entry.expr, entry.sense, entry.bound)
			entry.handle = h
			p.constraints[cid] = entry
		}
	}

	for _, cid := range cids {
		entry := p.constraints[cid]
		p.engine.RemoveConstraint(entry.handle)
		delete(p.constraints, cid)

		p.engine.ClearObjective()
		result := p.engine.Solve()
		switch result.Status {
		case lpengine.StatusInfeasible:
			dropped[cid] = entry
		case lpengine.StatusOptimal:
			essential[cid] = true
			h := p.engine.AddConstraint(entry.expr, entry.sense, entry.bound)
			entry.handle = h
			p.constraints[cid] = entry
		default:
			h := p.engine.AddConstraint(entry.expr, entry.sense, entry.bound)
			entry.handle = h
			p.constraints[cid] = entry
			restoreDropped()
			return nil, core.NewFatalError("partition.CoreUnsatExists", "LP engine returned undefined status")
		}
	}

	restoreDropped()
	p.engine.ClearObjective()

	out := make([]core.CID, 0, len(essential))
	for _, cid := range cids {
		if essential[cid] {
			out = append(out, cid)
		}
	}
	return out, nil
}

// CoreUnsatForall answers spec.md §4.2's core_unsat_forall(conflict_cid,
// unpropagated_groups, lazy). In lazy mode it returns every candidate
// group's cid undiminished. Otherwise, with the violated template's
// objective set, it tries each group's groundings in order: a grounding
// that makes the optimum meaningful again (infeasible, or >= bound - ε)
// marks the group's cid as part of the optimum core and its temporary
// constraint is removed immediately; groundings that did not help are
// left in the model until every group has been tried, then removed
// en-masse; their description keys are stashed in a description
// complement set scoped to, and cleared at the end of, this call
// (spec.md §4.2).
func (p *Partition) CoreUnsatForall(conflictCID core.CID, groups []CandidateGroup, lazy bool) ([]core.CID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lazy {
		out := make([]core.CID, 0, len(groups))
		for _, g := range groups {
			out = append(out, g.CID)
		}
		return out, nil
	}

	t, ok := p.forallTemplates[conflictCID]
	if !ok {
		return nil, core.NewProgrammingError("partition.CoreUnsatForall", "conflict cid has no forall template")
	}
	p.engine.SetObjective(t.expr, true)

	var optimumCore []core.CID
	var leftInPlace []lpengine.ConstraintHandle
	descriptionComplement := make(map[atom.DescriptionKey]struct{})

	for _, g := range groups {
		for _, grounding := range g.Groundings {
			h := p.engine.AddConstraint(grounding.Expr, g.Sense, g.Bound)
			result := p.engine.Solve()

			meaningful := result.Status == lpengine.StatusInfeasible ||
				(result.Status == lpengine.StatusOptimal && result.Objective >= t.bound-core.Epsilon)

			descriptionComplement[grounding.Key] = struct{}{}

			if meaningful {
				optimumCore = append(optimumCore, g.CID)
				p.engine.RemoveConstraint(h)
				break
			}
			leftInPlace = append(leftInPlace, h)
		}
	}

	for _, h := range leftInPlace {
		p.engine.RemoveConstraint(h)
	}
	p.engine.ClearObjective()

	return optimumCore, nil
}
