package graph

import (
	"fmt"

	"github.com/roach88/fam/internal/ir"
)

// Validate checks arena invariants and returns every violation found:
//   - each node is exactly one of leaf or combinator
//   - combinator children exist and operators are known
//   - the subgraph reachable from roots has a topological order
//
// When roots is empty every node is treated as a root.
func Validate(a *Arena, roots []ir.NodeID) []error {
	var errs []error
	for _, n := range a.nodes {
		leaf, comb := n.IsLeaf(), n.IsCombinator()
		if leaf == comb {
			errs = append(errs, ir.NewEvaluationConsistencyError(
				fmt.Sprintf("node %s must be either leaf or combinator", n.ID)))
			continue
		}
		if !comb {
			continue
		}
		if !ir.ValidOps[n.Op] {
			errs = append(errs, ir.NewEvaluationConsistencyError(
				fmt.Sprintf("node %s has unknown operator %q", n.ID, n.Op)))
		}
		for _, child := range []ir.NodeID{n.Left, n.Right} {
			if _, ok := a.index[child]; !ok {
				errs = append(errs, ir.NewEvaluationConsistencyError(
					fmt.Sprintf("node %s references undefined child %s", n.ID, child)))
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	if len(roots) == 0 {
		roots = make([]ir.NodeID, len(a.nodes))
		for i, n := range a.nodes {
			roots[i] = n.ID
		}
	}
	if _, err := TopoOrder(a, roots); err != nil {
		errs = append(errs, err)
	}
	return errs
}
