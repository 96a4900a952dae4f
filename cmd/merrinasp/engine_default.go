//go:build !lpsolve

package main

import (
	"fmt"

	"github.com/kthuillier/merrinasp/dispatcher"
	"github.com/kthuillier/merrinasp/lpengine"
	"github.com/kthuillier/merrinasp/lpengine/simplex"
)

// resolveEngineFactory maps --lp-solver to an engine constructor. The
// lpsolve backend is only linked in when built with -tags lpsolve,
// since github.com/draffensperger/golp requires cgo and a system
// lp_solve install; this file is the default (non-cgo) build.
func resolveEngineFactory(name string) (dispatcher.EngineFactory, error) {
	switch name {
	case "", "simplex":
		return func() lpengine.Engine { return simplex.New() }, nil
	case "lpsolve":
		return nil, fmt.Errorf("lp-solver %q requires building with -tags lpsolve", name)
	default:
		return nil, fmt.Errorf("unknown lp-solver %q", name)
	}
}
