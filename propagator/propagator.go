// Package propagator implements spec.md §4.5: the host-solver callback
// layer. A Checker owns one dispatcher.Dispatcher and translates the
// host's init/propagate/undo/check callbacks into dispatcher calls,
// synthesizing and queuing nogoods from whatever conflicts the
// dispatcher reports.
package propagator

import (
	"sort"
	"sync"

	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/core"
	"github.com/kthuillier/merrinasp/dispatcher"
	"github.com/kthuillier/merrinasp/nogood"
	"github.com/kthuillier/merrinasp/registry"
	"github.com/kthuillier/merrinasp/stats"
)

// Config is the propagator's CLI-derived configuration (spec.md §6).
type Config struct {
	LazyMode         bool
	StrictForall     bool
	ShowLPAssignment bool
	Debug            bool
}

// AddNogoodFunc is the host's add-nogood primitive: it returns false if
// the host rejects the nogood (e.g. it has already been derived), in
// which case the caller must stop applying queued nogoods and leave
// the remainder queued (spec.md §4.5 step 1, §7).
type AddNogoodFunc func(ng nogood.Nogood, lock bool) (accepted bool)

// LiteralChange is one host solver literal whose assignment changed.
type LiteralChange struct {
	SID   core.SID
	Value bool
}

// Checker is one host thread's propagator state: its own dispatcher
// and partition-model set, per spec.md §4.5's "Per-thread state" ("each
// host thread gets its own checker instance with its own dispatcher").
type Checker struct {
	mu sync.Mutex

	reg       *registry.Registry
	disp      *dispatcher.Dispatcher
	cfg       Config
	logger    core.Logger
	addNogood AddNogoodFunc

	queue []nogood.Nogood

	sidToCIDs    map[core.SID][]core.CID
	sidToCondIDs map[core.SID][]core.CondID

	cidValue  map[core.CID]bool
	condValue map[core.CondID]bool

	incorporated map[core.CID]bool
}

// New builds a Checker over reg and conditions. If cfg.LazyMode is
// false, the caller is expected to watch every solver literal it names
// during Init and call Propagate/Undo on every change; if true,
// the caller relies on Check alone (spec.md §4.5's "Init").
func New(reg *registry.Registry, conditions []atom.Condition, disp *dispatcher.Dispatcher, cfg Config, addNogood AddNogoodFunc, logger core.Logger) *Checker {
	if logger == nil {
		logger = core.NewNopLogger()
	}

	c := &Checker{
		reg:          reg,
		disp:         disp,
		cfg:          cfg,
		logger:       logger,
		addNogood:    addNogood,
		sidToCIDs:    make(map[core.SID][]core.CID),
		sidToCondIDs: make(map[core.SID][]core.CondID),
		cidValue:     make(map[core.CID]bool),
		condValue:    make(map[core.CondID]bool),
		incorporated: make(map[core.CID]bool),
	}

	for _, cond := range conditions {
		disp.RegisterCondition(cond)
		c.sidToCondIDs[cond.SID] = append(c.sidToCondIDs[cond.SID], cond.CondID)
	}
	for _, cid := range reg.AllCIDs() {
		row, ok := reg.Row(cid)
		if !ok {
			continue
		}
		c.sidToCIDs[row.SID] = append(c.sidToCIDs[row.SID], cid)
	}

	logger.Debug("checker initialized")
	return c
}

// WatchedLiterals returns every solver literal this checker's init
// wants watched in eager mode (one per distinct sid among its cids and
// conditions).
func (c *Checker) WatchedLiterals() []core.SID {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[core.SID]bool)
	out := make([]core.SID, 0, len(c.sidToCIDs)+len(c.sidToCondIDs))
	for sid := range c.sidToCIDs {
		if !seen[sid] {
			seen[sid] = true
			out = append(out, sid)
		}
	}
	for sid := range c.sidToCondIDs {
		if !seen[sid] {
			seen[sid] = true
			out = append(out, sid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Propagate implements spec.md §4.5's propagate(changes): apply queued
// nogoods, translate changes into guess/condition tables, issue
// dispatcher propagation for every now-fully-guessed cid, run the check
// loops, and enqueue any resulting nogoods.
func (c *Checker) Propagate(changes []LiteralChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.propagateLocked(changes)
}

func (c *Checker) propagateLocked(changes []LiteralChange) error {
	if !c.applyQueueLocked() {
		return nil
	}

	affected := c.applyChangesLocked(changes)
	triples := c.triplesForLocked(affected)
	if len(triples) > 0 {
		if err := c.disp.Propagate(triples); err != nil {
			return err
		}
		for _, t := range triples {
			c.incorporated[t.CID] = true
		}
	}

	if err := c.runChecksLocked(); err != nil {
		return err
	}
	c.applyQueueLocked()
	return nil
}

// applyChangesLocked folds each LiteralChange into cidValue/condValue
// and returns the set of cids whose guess or condition set just
// changed and are candidates for (re)propagation.
func (c *Checker) applyChangesLocked(changes []LiteralChange) map[core.CID]bool {
	affected := make(map[core.CID]bool)
	for _, ch := range changes {
		for _, cid := range c.sidToCIDs[ch.SID] {
			c.cidValue[cid] = ch.Value
			affected[cid] = true
		}
		for _, condID := range c.sidToCondIDs[ch.SID] {
			c.condValue[condID] = ch.Value
		}
	}
	// A condition change can affect any cid that mentions it; conditions
	// are shared by sid, not indexed back to cids directly, so fold in
	// every cid whose row's ExprByCond mentions a changed condition.
	for _, cid := range c.reg.AllCIDs() {
		row, ok := c.reg.Row(cid)
		if !ok {
			continue
		}
		for _, ch := range changes {
			for _, condID := range c.sidToCondIDs[ch.SID] {
				if _, mentioned := row.ExprByCond[condID]; mentioned {
					affected[cid] = true
				}
			}
		}
	}
	return affected
}

// triplesForLocked collects the fully-guessed (truth known, all
// conditions known) cids among affected and builds their
// dispatcher.CIDTruth triples, per spec.md §4.5 step 3.
func (c *Checker) triplesForLocked(affected map[core.CID]bool) []dispatcher.CIDTruth {
	cids := make([]core.CID, 0, len(affected))
	for cid := range affected {
		cids = append(cids, cid)
	}
	sort.Slice(cids, func(i, j int) bool { return cids[i] < cids[j] })

	out := make([]dispatcher.CIDTruth, 0, len(cids))
	for _, cid := range cids {
		truth, ok := c.cidValue[cid]
		if !ok {
			continue
		}
		row, ok := c.reg.Row(cid)
		if !ok {
			continue
		}

		condIDs := row.ExprByCond.ConditionIDs()
		trueConds := make([]core.CondID, 0, len(condIDs))
		allKnown := true
		for _, condID := range condIDs {
			if condID == core.UnconditionalCond {
				trueConds = append(trueConds, condID)
				continue
			}
			v, known := c.condValue[condID]
			if !known {
				allKnown = false
				break
			}
			if v {
				trueConds = append(trueConds, condID)
			}
		}
		if !allKnown {
			continue
		}
		out = append(out, dispatcher.CIDTruth{CID: cid, Truth: truth, TrueConditions: trueConds})
	}
	return out
}

// runChecksLocked drives check_exists/check_forall and enqueues the
// nogoods their conflicts synthesize, per spec.md §4.5 step 4.
func (c *Checker) runChecksLocked() error {
	existsConflicts, err := c.disp.CheckExists()
	if err != nil {
		return err
	}
	for _, conflict := range existsConflicts {
		ng, err := c.disp.NogoodForExists(conflict)
		if err != nil {
			return err
		}
		c.logger.WithField("pid", conflict.PID).Info("existential conflict")
		c.queue = append(c.queue, ng)
	}

	forallConflicts, err := c.disp.CheckForall()
	if err != nil {
		return err
	}
	for _, conflict := range forallConflicts {
		ng, err := c.disp.NogoodForForall(conflict)
		if err != nil {
			return err
		}
		c.logger.WithField("pid", conflict.PID).Info("universal conflict")
		c.queue = append(c.queue, ng)
	}
	return nil
}

// applyQueueLocked drains the nogood queue via addNogood, stopping (and
// leaving the remainder queued) the moment one is rejected, per
// spec.md §4.5 step 1 and §7's "Host rejected nogood" policy. It
// reports whether it drained the queue fully.
func (c *Checker) applyQueueLocked() bool {
	for len(c.queue) > 0 {
		ng := c.queue[0]
		if c.addNogood == nil || !c.addNogood(ng, true) {
			return false
		}
		c.queue = c.queue[1:]
	}
	return true
}

// Undo implements spec.md §4.5's undo(changes): mirror of Propagate —
// reset guess tables for each retracted literal and call
// dispatcher.Undo for whichever cids were actually incorporated.
func (c *Checker) Undo(changes []LiteralChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.undoLocked(changes)
}

func (c *Checker) undoLocked(changes []LiteralChange) error {
	affected := make(map[core.CID]bool)
	for _, ch := range changes {
		for _, cid := range c.sidToCIDs[ch.SID] {
			delete(c.cidValue, cid)
			affected[cid] = true
		}
		for _, condID := range c.sidToCondIDs[ch.SID] {
			delete(c.condValue, condID)
		}
	}

	toUndo := make([]core.CID, 0, len(affected))
	for cid := range affected {
		if c.incorporated[cid] {
			toUndo = append(toUndo, cid)
			delete(c.incorporated, cid)
		}
	}
	if len(toUndo) == 0 {
		return nil
	}
	sort.Slice(toUndo, func(i, j int) bool { return toUndo[i] < toUndo[j] })
	return c.disp.Undo(toUndo)
}

// Check implements spec.md §4.5's check(): build a synthetic change-set
// from literals the host has assigned but this checker has not yet
// incorporated, run the usual propagate logic against it, then undo the
// synthetic batch so the checker's internal state reflects only real
// host decisions.
func (c *Checker) Check(assigned []LiteralChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.propagateLocked(assigned); err != nil {
		return err
	}
	return c.undoLocked(assigned)
}

// Stats exposes the dispatcher's accumulated per-pid statistics.
func (c *Checker) Stats() map[core.PID]stats.PartitionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disp.Stats()
}
