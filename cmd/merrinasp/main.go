// Command merrinasp is a standalone harness for the theory propagator:
// it exercises the registry/dispatcher/propagator pipeline against a
// small built-in program and reports the statistics a host solver
// integration would otherwise only see through its own logs. It is not
// itself a clingo host — grounding the theory atoms in a real ASP
// grounder is out of scope (spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// lpSolverValue is a pflag.Value restricting --lp-solver to the names
// resolveEngineFactory understands, rather than accepting any string
// and failing later at Execute time.
type lpSolverValue string

var _ pflag.Value = (*lpSolverValue)(nil)

func (v *lpSolverValue) String() string { return string(*v) }
func (v *lpSolverValue) Type() string   { return "string" }
func (v *lpSolverValue) Set(s string) error {
	switch s {
	case "simplex", "lpsolve":
		*v = lpSolverValue(s)
		return nil
	default:
		return fmt.Errorf("must be one of: simplex, lpsolve")
	}
}

type options struct {
	lpSolver         lpSolverValue
	lazyMode         bool
	strictForall     bool
	showLPAssignment bool
	debug            bool
}

func newRootCmd() *cobra.Command {
	o := options{lpSolver: "simplex"}

	cmd := &cobra.Command{
		Use:          "merrinasp",
		Short:        "LRA theory propagator harness",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().Var(&o.lpSolver, "lp-solver", "LP backend to use: simplex or lpsolve")
	cmd.PersistentFlags().BoolVar(&o.lazyMode, "lazy-mode", false, "defer LP incorporation to check() instead of eager propagate/undo")
	cmd.PersistentFlags().BoolVar(&o.strictForall, "strict-forall", false, "fold a partition's universal cids into every existential conflict core")
	cmd.PersistentFlags().BoolVar(&o.showLPAssignment, "show-lp-assignment", false, "print the LP assignment found by optimize()")
	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "use debug log level")

	cmd.AddCommand(newDemoCmd(&o))
	return cmd
}

func newLogger(o *options) *logrus.Logger {
	logger := logrus.New()
	if o.debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
