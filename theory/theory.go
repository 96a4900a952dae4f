// Package theory is the top-level facade of spec.md's system: it wires
// a registry.Registry, a dispatcher.Dispatcher and a propagator.Checker
// into the single entry point a host solver integration imports,
// grounded on the teacher's facade shape (sat.SATSystemImpl wires a
// Solver and a CNFConverter behind one constructor; classical.System
// wires a lexer/parser pair the same way).
package theory

import (
	"github.com/kthuillier/merrinasp/atom"
	"github.com/kthuillier/merrinasp/cache"
	"github.com/kthuillier/merrinasp/core"
	"github.com/kthuillier/merrinasp/dispatcher"
	"github.com/kthuillier/merrinasp/lpengine"
	"github.com/kthuillier/merrinasp/nogood"
	"github.com/kthuillier/merrinasp/propagator"
	"github.com/kthuillier/merrinasp/registry"
	"github.com/kthuillier/merrinasp/stats"
)

// Options configures a System, mirroring the CLI flags of spec.md §6.
type Options struct {
	LazyMode         bool
	StrictForall     bool
	ShowLPAssignment bool
	Debug            bool
	EngineFactory    dispatcher.EngineFactory
	Logger           core.Logger
}

// System is the theory propagator entry point: one Registry shared at
// build time, and one Checker per solver thread sharing a Cache.
type System struct {
	reg   *registry.Registry
	cache *cache.Cache
	opts  Options
}

// New creates a System. engineFactory must be supplied by the caller
// (cmd/merrinasp resolves it from --lp-solver); theory itself never
// imports a build-tag-gated engine package.
func New(opts Options) *System {
	if opts.EngineFactory == nil {
		panic("theory.New: EngineFactory is required")
	}
	return &System{
		reg:   registry.New(),
		cache: cache.New(),
		opts:  opts,
	}
}

// Name identifies the system, for parity with the teacher's
// core.LogicSystem.Name() surface.
func (s *System) Name() string { return "merrinasp" }

// Registry exposes the underlying registry for host-side registration
// of theory atoms (RegisterDom/RegisterSum/RegisterObjective/RegisterAssert).
func (s *System) Registry() *registry.Registry { return s.reg }

// NewChecker creates a fresh per-thread Checker sharing this System's
// registry and cache, per spec.md §4.5's per-thread state and §5's
// shared-cache concurrency model.
func (s *System) NewChecker(conditions []atom.Condition, addNogood propagator.AddNogoodFunc) *Checker {
	disp := dispatcher.New(s.reg, s.cache, s.opts.EngineFactory, s.opts.LazyMode, s.opts.StrictForall)
	cfg := propagator.Config{
		LazyMode:         s.opts.LazyMode,
		StrictForall:     s.opts.StrictForall,
		ShowLPAssignment: s.opts.ShowLPAssignment,
		Debug:            s.opts.Debug,
	}
	checker := propagator.New(s.reg, conditions, disp, cfg, addNogood, s.opts.Logger)
	return &Checker{checker: checker, disp: disp}
}

// CacheStats reports the shared cache's hit/miss/size counters.
func (s *System) CacheStats() cache.Stats { return s.cache.Snapshot() }

// Checker wraps a propagator.Checker with the dispatcher it drives, the
// handle a host solver thread holds for the lifetime of a solve.
type Checker struct {
	checker *propagator.Checker
	disp    *dispatcher.Dispatcher
}

// WatchedLiterals returns the sids this checker needs the host to
// watch in eager mode.
func (c *Checker) WatchedLiterals() []core.SID { return c.checker.WatchedLiterals() }

// Propagate forwards to the underlying propagator.Checker.
func (c *Checker) Propagate(changes []propagator.LiteralChange) error {
	return c.checker.Propagate(changes)
}

// Undo forwards to the underlying propagator.Checker.
func (c *Checker) Undo(changes []propagator.LiteralChange) error {
	return c.checker.Undo(changes)
}

// Check forwards to the underlying propagator.Checker.
func (c *Checker) Check(assigned []propagator.LiteralChange) error {
	return c.checker.Check(assigned)
}

// Optimize runs the dispatcher's optimize() over every live partition,
// spec.md §4.4, used once the host reports a stable model.
func (c *Checker) Optimize() ([]dispatcher.OptimizeResult, error) {
	return c.disp.Optimize()
}

// Stats reports this checker's per-partition statistics.
func (c *Checker) Stats() map[core.PID]stats.PartitionStats { return c.checker.Stats() }

// NogoodString renders a nogood for logging as space-separated signed
// sids, e.g. "+1 -2" for {+sid 1, −sid 2}.
func NogoodString(ng nogood.Nogood) string {
	s := ""
	for i, lit := range ng {
		if i > 0 {
			s += " "
		}
		s += lit.String()
	}
	return s
}
