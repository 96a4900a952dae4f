package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kthuillier/merrinasp/core"
	"github.com/kthuillier/merrinasp/lraterm"
	"github.com/kthuillier/merrinasp/nogood"
	"github.com/kthuillier/merrinasp/propagator"
	"github.com/kthuillier/merrinasp/registry"
	"github.com/kthuillier/merrinasp/theory"
)

// demoAtom is one fixture row read by the demo: an already-ground
// &sum(pid){x} op bound atom and the host sid it is guessed true or
// false under.
type demoAtom struct {
	sid   core.SID
	pid   core.PID
	expr  string
	guess bool
}

func newDemoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "run a fixed toy program through the propagator and print its statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(o, cmd)
		},
	}
}

func runDemo(o *options, cmd *cobra.Command) error {
	logger := newLogger(o)

	engineFactory, err := resolveEngineFactory(string(o.lpSolver))
	if err != nil {
		return err
	}

	sys := theory.New(theory.Options{
		LazyMode:         o.lazyMode,
		StrictForall:     o.strictForall,
		ShowLPAssignment: o.showLPAssignment,
		Debug:            o.debug,
		EngineFactory:    engineFactory,
		Logger:           logger,
	})

	// Scenario (a): a feasible domain + sum pair on its own partition.
	// Scenario (b): a conflicting pair of &sum atoms sharing a partition.
	fixture := []demoAtom{
		{sid: 1, pid: "feasible", expr: "x >= 0", guess: true},
		{sid: 2, pid: "feasible", expr: "x <= 10", guess: true},
		{sid: 3, pid: "feasible", expr: "x >= 5", guess: true},
		{sid: 100, pid: "conflict", expr: "x >= 3", guess: true},
		{sid: 101, pid: "conflict", expr: "x <= 1", guess: true},
	}

	reg := sys.Registry()
	changes := make([]propagator.LiteralChange, 0, len(fixture))

	for _, a := range fixture {
		c, err := lraterm.ParseConstraint(a.expr)
		if err != nil {
			return fmt.Errorf("parsing fixture %q: %w", a.expr, err)
		}
		_, err = reg.RegisterSum(a.sid, a.pid, []registry.Element{{CondID: core.UnconditionalCond, Terms: c.Expr}}, c.Sense, c.Bound)
		if err != nil {
			return fmt.Errorf("registering fixture %q: %w", a.expr, err)
		}
		changes = append(changes, propagator.LiteralChange{SID: a.sid, Value: a.guess})
	}

	// Every fixture atom is unconditional (registered under
	// core.UnconditionalCond), so this demo has no guard conditions to
	// declare to the checker.
	var reported []nogood.Nogood
	checker := sys.NewChecker(nil, func(ng nogood.Nogood, lock bool) bool {
		reported = append(reported, ng)
		logger.WithField("nogood", theory.NogoodString(ng)).Info("nogood reported to host")
		return true
	})

	if err := checker.Propagate(changes); err != nil {
		return fmt.Errorf("propagate: %w", err)
	}

	cmd.Printf("nogoods reported: %d\n", len(reported))
	for pid, s := range checker.Stats() {
		cmd.Printf("partition %s: lp_calls=%d cache_hits=%d cache_misses=%d exists_conflicts=%d forall_conflicts=%d\n",
			pid, s.LPCalls, s.CacheHits, s.CacheMisses, s.ExistsConflicts, s.ForallConflicts)
	}

	if o.showLPAssignment {
		results, err := checker.Optimize()
		if err != nil {
			return fmt.Errorf("optimize: %w", err)
		}
		for _, r := range results {
			cmd.Printf("partition %s: lp_status=%s assignment=%v\n", r.PID, r.Status, r.Assignment)
		}
	}

	cacheStats := sys.CacheStats()
	cmd.Printf("cache: hits=%d misses=%d size=%d peak=%d\n", cacheStats.Hits, cacheStats.Misses, cacheStats.Size, cacheStats.Peak)

	return nil
}
