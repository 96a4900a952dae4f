// Package dispatcher implements spec.md §4.4: routing host literal
// changes to the right partition, tracking per-cid guessed/propagated
// status, and driving the check_exists/check_forall/optimize loops.
package dispatcher

import (
	"sort"
	"sync"
	"time"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/cache"
	"github.com/kthuillier/merrinasp/core"
	"github.com/kthuillier/merrinasp/lpengine"
	"github.com/kthuillier/merrinasp/nogood"
	"github.com/kthuillier/merrinasp/partition"
	"github.com/kthuillier/merrinasp/registry"
	"github.com/kthuillier/merrinasp/stats"
)

// EngineFactory creates a fresh LP engine for a newly instantiated
// partition model; cmd/merrinasp wires this to simplex.New or
// lpsolve.New per the --lp-solver flag.
type EngineFactory func() lpengine.Engine

// CIDTruth is one host-asserted truth value for a cid together with
// the condition ids currently true for it, spec.md §4.4's
// propagate(cid_truth_triples) input.
type CIDTruth struct {
	CID            core.CID
	Truth          bool
	TrueConditions []core.CondID
}

// ExistsConflict names the pid whose existential constraints are
// jointly infeasible and the core cids blamed for it.
type ExistsConflict struct {
	PID  core.PID
	Core []core.CID
}

// ForallConflict is one violated universal template together with the
// propagated and optimum-core cids needed to synthesize its nogood
// (spec.md §4.4's check_forall triples).
type ForallConflict struct {
	PID         core.PID
	Violating   core.CID
	Propagated  []core.CID
	OptimumCore []core.CID
}

// OptimizeResult is one partition's optimize() outcome.
type OptimizeResult struct {
	PID        core.PID
	Status     lpengine.Status
	Assignment partition.Assignment
}

// Dispatcher is the per-thread state of spec.md §3's "Dispatcher
// state": pids_to_cids (derived from the registry), cid_guessed,
// cid_propagated, and the partition models it owns.
type Dispatcher struct {
	mu sync.Mutex

	reg           *registry.Registry
	cache         *cache.Cache
	engineFactory EngineFactory
	lazy          bool
	strictForall  bool

	partitions map[core.PID]*partition.Partition

	cidGuessed    map[core.CID]bool
	cidPropagated map[core.CID]bool
	cidTrueConds  map[core.CID]map[core.CondID]bool
	conditions    map[core.CondID]atom.Condition

	liveStats     map[core.PID]*stats.PartitionStats
	archivedStats map[core.PID]stats.PartitionStats
}

// New creates a Dispatcher over reg. lazy and strictForall select the
// CLI behavior of spec.md §6's --lazy-mode and --strict-forall flags.
func New(reg *registry.Registry, c *cache.Cache, engineFactory EngineFactory, lazy, strictForall bool) *Dispatcher {
	return &Dispatcher{
		reg:           reg,
		cache:         c,
		engineFactory: engineFactory,
		lazy:          lazy,
		strictForall:  strictForall,
		partitions:    make(map[core.PID]*partition.Partition),
		cidGuessed:    make(map[core.CID]bool),
		cidPropagated: make(map[core.CID]bool),
		cidTrueConds:  make(map[core.CID]map[core.CondID]bool),
		conditions:    make(map[core.CondID]atom.Condition),
		liveStats:     make(map[core.PID]*stats.PartitionStats),
		archivedStats: make(map[core.PID]stats.PartitionStats),
	}
}

// RegisterCondition records condid's host literal, needed to
// synthesize the ±sid(condid) literals of spec.md §4.6.
func (d *Dispatcher) RegisterCondition(cond atom.Condition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conditions[cond.CondID] = cond
}

func (d *Dispatcher) partitionFor(pid core.PID) *partition.Partition {
	p, ok := d.partitions[pid]
	if !ok {
		p = partition.New(d.engineFactory(), d.cache)
		d.partitions[pid] = p
	}
	if _, ok := d.liveStats[pid]; !ok {
		archived := d.archivedStats[pid]
		d.liveStats[pid] = &archived
	}
	return p
}

func (d *Dispatcher) statsFor(pid core.PID) *stats.PartitionStats {
	if s, ok := d.liveStats[pid]; ok {
		return s
	}
	archived := d.archivedStats[pid]
	d.liveStats[pid] = &archived
	return d.liveStats[pid]
}

// Propagate applies spec.md §4.4's propagate(cid_truth_triples): for
// each triple it records the guess (and the paired -cid's, if any),
// stages the grounded LP constraint when the cid is now true, and
// clears the propagated flags when it is now false. Staged additions
// are applied to their partitions once all triples are processed.
func (d *Dispatcher) Propagate(triples []CIDTruth) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	staged := make(map[core.PID][]partition.Update)

	for _, t := range triples {
		row, ok := d.reg.Row(t.CID)
		if !ok {
			return core.NewProgrammingError("dispatcher.Propagate", "unregistered cid")
		}

		d.cidGuessed[t.CID] = true
		var paired core.CID
		hasPair := row.Paired()
		if hasPair {
			paired = t.CID.Negate()
			d.cidGuessed[paired] = true
		}

		trueConds := make(map[core.CondID]bool, len(t.TrueConditions))
		for _, c := range t.TrueConditions {
			trueConds[c] = true
		}
		d.cidTrueConds[t.CID] = trueConds

		if !t.Truth {
			d.cidPropagated[t.CID] = false
			if hasPair {
				d.cidPropagated[paired] = false
			}
			continue
		}

		expr := row.ExprByCond.Ground(trueConds)
		staged[row.PID] = append(staged[row.PID], partition.Update{
			CID: t.CID, Kind: row.Kind, Expr: expr, Sense: row.Sense, Bound: row.Bound, Weight: row.ObjectiveWeight,
		})
		d.cidPropagated[t.CID] = true

		if hasPair {
			pairedRow, ok := d.reg.Row(paired)
			if !ok {
				return core.NewProgrammingError("dispatcher.Propagate", "paired cid missing from registry")
			}
			d.cidTrueConds[paired] = trueConds
			pairedExpr := pairedRow.ExprByCond.Ground(trueConds)
			staged[row.PID] = append(staged[row.PID], partition.Update{
				CID: paired, Kind: pairedRow.Kind, Expr: pairedExpr, Sense: pairedRow.Sense, Bound: pairedRow.Bound, Weight: pairedRow.ObjectiveWeight,
			})
			d.cidPropagated[paired] = true
		}
	}

	for pid, updates := range staged {
		if len(updates) == 0 {
			continue
		}
		start := time.Now()
		if err := d.partitionFor(pid).Update(updates); err != nil {
			return err
		}
		s := d.statsFor(pid)
		s.Updates += int64(len(updates))
		s.UpdateTime += time.Since(start)
	}
	return nil
}

// Undo mirrors Propagate for each cid whose guess was the true branch:
// it removes the matching LP constraint(s), clears guessed/propagated
// flags, and — if a partition becomes empty — archives its statistics
// and retires the model instance (spec.md §4.4's undo(cids); the cache
// itself persists across teardown).
func (d *Dispatcher) Undo(cids []core.CID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	byPID := make(map[core.PID][]core.CID)
	for _, cid := range cids {
		row, ok := d.reg.Row(cid)
		if !ok {
			return core.NewProgrammingError("dispatcher.Undo", "unregistered cid")
		}
		if !d.cidGuessed[cid] {
			continue
		}
		if d.cidPropagated[cid] {
			byPID[row.PID] = append(byPID[row.PID], cid)
		}
		delete(d.cidGuessed, cid)
		delete(d.cidPropagated, cid)
		delete(d.cidTrueConds, cid)

		if row.Paired() {
			paired := cid.Negate()
			if d.cidPropagated[paired] {
				byPID[row.PID] = append(byPID[row.PID], paired)
			}
			delete(d.cidGuessed, paired)
			delete(d.cidPropagated, paired)
			delete(d.cidTrueConds, paired)
		}
	}

	for pid, toRemove := range byPID {
		p, ok := d.partitions[pid]
		if !ok {
			continue
		}
		start := time.Now()
		if err := p.Remove(toRemove); err != nil {
			return err
		}
		s := d.statsFor(pid)
		s.Backtracks += int64(len(toRemove))
		s.UpdateTime += time.Since(start)

		if p.IsEmpty() {
			d.archivedStats[pid] = *s
			delete(d.liveStats, pid)
			delete(d.partitions, pid)
		}
	}
	return nil
}

// rowInfoFor builds a nogood.RowInfo for cid from the registry,
// including the condition ids it depends on.
func (d *Dispatcher) rowInfoFor(cid core.CID) (nogood.RowInfo, error) {
	row, ok := d.reg.Row(cid)
	if !ok {
		return nogood.RowInfo{}, core.NewProgrammingError("dispatcher.rowInfoFor", "unregistered cid")
	}
	return nogood.RowInfo{
		SID:        row.SID,
		Negative:   cid < 0,
		Conditions: row.ExprByCond.ConditionIDs(),
	}, nil
}

// conditionInfoFor builds the condition lookup table NogoodForExists
// and NogoodForForall need. core.UnconditionalCond is never registered
// via RegisterCondition, so it is simply absent here; nogood.Synthesize*
// skip it when building condition literals.
func (d *Dispatcher) conditionInfoFor(condIDs []core.CondID) map[core.CondID]nogood.ConditionInfo {
	out := make(map[core.CondID]nogood.ConditionInfo, len(condIDs))
	for _, id := range condIDs {
		cond, ok := d.conditions[id]
		if !ok {
			continue
		}
		out[id] = nogood.ConditionInfo{SID: cond.SID, True: d.isTrueEverywhere(id)}
	}
	return out
}

// isTrueEverywhere reports whether condid is currently recorded true
// for any cid that mentions it; the host guarantees a condition's
// truth is uniform across every cid that shares it.
func (d *Dispatcher) isTrueEverywhere(condID core.CondID) bool {
	for _, trueConds := range d.cidTrueConds {
		if v, ok := trueConds[condID]; ok {
			return v
		}
	}
	return false
}

// CheckExists runs spec.md §4.4's check_exists(): for every partition
// with checked_exists == false, call Partition.CheckExists; on UNSAT,
// extract the core (optionally unioned with the partition's forall
// cids when strict-forall mode is active) and report a conflict.
func (d *Dispatcher) CheckExists() ([]ExistsConflict, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pids := d.sortedPIDs()
	conflicts := make([]ExistsConflict, 0)

	for _, pid := range pids {
		p := d.partitions[pid]
		if !p.NeedsExistsCheck() {
			continue
		}
		s := d.statsFor(pid)

		start := time.Now()
		sat, err := p.CheckExists()
		s.LPCalls++
		s.LPTime += time.Since(start)
		if err != nil {
			return nil, err
		}
		if sat {
			continue
		}

		coreCIDs, err := p.CoreUnsatExists(d.lazy)
		if err != nil {
			return nil, err
		}
		if d.strictForall {
			coreCIDs = append(coreCIDs, d.forallCIDsForPID(pid)...)
		}
		s.ExistsConflicts++
		conflicts = append(conflicts, ExistsConflict{PID: pid, Core: coreCIDs})
	}
	return conflicts, nil
}

func (d *Dispatcher) forallCIDsForPID(pid core.PID) []core.CID {
	out := make([]core.CID, 0)
	for _, cid := range d.reg.CIDsForPID(pid) {
		row, ok := d.reg.Row(cid)
		if ok && row.Kind == atom.Forall && d.cidPropagated[cid] {
			out = append(out, cid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CheckForall runs spec.md §4.4's check_forall(): for every partition
// with checked_forall == false, call Partition.CheckForall, and for
// each violated cid call Partition.CoreUnsatForall against the
// groundings of its not-yet-propagated cids.
func (d *Dispatcher) CheckForall() ([]ForallConflict, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pids := d.sortedPIDs()
	conflicts := make([]ForallConflict, 0)

	for _, pid := range pids {
		p := d.partitions[pid]
		if !p.NeedsForallCheck() {
			continue
		}
		s := d.statsFor(pid)

		start := time.Now()
		violated, err := p.CheckForall()
		s.LPCalls++
		s.LPTime += time.Since(start)
		if err != nil {
			return nil, err
		}

		for _, q := range violated {
			propagated := d.propagatedCIDsForPID(pid)
			groups := d.candidateGroupsForPID(pid, q)

			optimumCore, err := p.CoreUnsatForall(q, groups, d.lazy)
			if err != nil {
				return nil, err
			}
			s.ForallConflicts++
			conflicts = append(conflicts, ForallConflict{
				PID: pid, Violating: q, Propagated: propagated, OptimumCore: optimumCore,
			})
		}
	}
	return conflicts, nil
}

func (d *Dispatcher) propagatedCIDsForPID(pid core.PID) []core.CID {
	out := make([]core.CID, 0)
	for _, cid := range d.reg.CIDsForPID(pid) {
		if d.cidPropagated[cid] {
			out = append(out, cid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// candidateGroupsForPID builds one partition.CandidateGroup per
// existential cid in pid, other than violating, that is not propagated
// (whether or not it has been guessed), drawing its alternative
// groundings from the registry's memoized enumeration (spec.md §4.3).
func (d *Dispatcher) candidateGroupsForPID(pid core.PID, violating core.CID) []partition.CandidateGroup {
	groups := make([]partition.CandidateGroup, 0)
	for _, cid := range d.reg.CIDsForPID(pid) {
		if cid == violating || d.cidPropagated[cid] {
			continue
		}
		row, ok := d.reg.Row(cid)
		if !ok || row.Kind != atom.Exists {
			continue
		}
		variants := d.reg.GroundedVariants(cid)
		groundings := make([]partition.Grounding, 0, len(variants))
		for _, v := range variants {
			groundings = append(groundings, partition.Grounding{Expr: v.Expr, Key: v.Key})
		}
		groups = append(groups, partition.CandidateGroup{
			CID: cid, Sense: row.Sense, Bound: row.Bound, Groundings: groundings,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CID < groups[j].CID })
	return groups
}

// Optimize runs Partition.Optimize on every fully-guessed partition,
// per spec.md §4.4's optimize().
func (d *Dispatcher) Optimize() ([]OptimizeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pids := d.sortedPIDs()
	results := make([]OptimizeResult, 0, len(pids))

	for _, pid := range pids {
		p := d.partitions[pid]
		s := d.statsFor(pid)

		start := time.Now()
		status, assignment, err := p.Optimize()
		s.LPCalls++
		s.LPTime += time.Since(start)
		if err != nil {
			return nil, err
		}
		results = append(results, OptimizeResult{PID: pid, Status: status, Assignment: assignment})
	}
	return results, nil
}

// NogoodForExists synthesizes the nogood for an existential conflict,
// per spec.md §4.6.
func (d *Dispatcher) NogoodForExists(c ExistsConflict) (nogood.Nogood, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := make(map[core.CID]nogood.RowInfo, len(c.Core))
	condIDs := make([]core.CondID, 0)
	for _, cid := range c.Core {
		info, err := d.rowInfoFor(cid)
		if err != nil {
			return nil, err
		}
		rows[cid] = info
		condIDs = append(condIDs, info.Conditions...)
	}
	return nogood.SynthesizeExistential(c.Core, rows, d.conditionInfoFor(condIDs))
}

// NogoodForForall synthesizes the nogood for a universal conflict, per
// spec.md §4.6.
func (d *Dispatcher) NogoodForForall(c ForallConflict) (nogood.Nogood, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	all := append([]core.CID{c.Violating}, c.Propagated...)
	all = append(all, c.OptimumCore...)

	rows := make(map[core.CID]nogood.RowInfo, len(all))
	condIDs := make([]core.CondID, 0)
	for _, cid := range all {
		info, err := d.rowInfoFor(cid)
		if err != nil {
			return nil, err
		}
		rows[cid] = info
		condIDs = append(condIDs, info.Conditions...)
	}
	return nogood.SynthesizeUniversal(c.Violating, c.Propagated, c.OptimumCore, rows, d.conditionInfoFor(condIDs))
}

// Stats reports the live-plus-archived statistics for every pid the
// dispatcher has ever seen.
func (d *Dispatcher) Stats() map[core.PID]stats.PartitionStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[core.PID]stats.PartitionStats, len(d.archivedStats)+len(d.liveStats))
	for pid, s := range d.archivedStats {
		out[pid] = s
	}
	for pid, s := range d.liveStats {
		out[pid] = *s
	}
	return out
}

func (d *Dispatcher) sortedPIDs() []core.PID {
	out := make([]core.PID, 0, len(d.partitions))
	for pid := range d.partitions {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
