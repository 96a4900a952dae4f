//go:build lpsolve

package main

import (
	"fmt"

	"github.com/kthuillier/merrinasp/dispatcher"
	"github.com/kthuillier/merrinasp/lpengine"
	"github.com/kthuillier/merrinasp/lpengine/lpsolve"
	"github.com/kthuillier/merrinasp/lpengine/simplex"
)

func resolveEngineFactory(name string) (dispatcher.EngineFactory, error) {
	switch name {
	case "", "simplex":
		return func() lpengine.Engine { return simplex.New() }, nil
	case "lpsolve":
		return func() lpengine.Engine { return lpsolve.New() }, nil
	default:
		return nil, fmt.Errorf("unknown lp-solver %q", name)
	}
}
