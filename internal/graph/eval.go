package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/fam/internal/ir"
)

// EvalRecursive evaluates id depth-first. memo may be nil; when given it is
// filled with every node visited and reused across calls.
//
// Recursion depth equals graph depth. It exists as a test oracle and is not
// hardened against adversarial graphs.
func EvalRecursive(a *Arena, id ir.NodeID, memo map[ir.NodeID]float64) (float64, error) {
	if memo == nil {
		memo = make(map[ir.NodeID]float64)
	}
	return evalRecursive(a, id, memo, make(map[ir.NodeID]bool))
}

func evalRecursive(a *Arena, id ir.NodeID, memo map[ir.NodeID]float64, active map[ir.NodeID]bool) (float64, error) {
	if v, ok := memo[id]; ok {
		return v, nil
	}
	n, err := a.Get(id)
	if err != nil {
		return 0, consistencyError(err)
	}
	if n.IsLeaf() {
		memo[id] = n.Value
		return n.Value, nil
	}
	if !n.IsCombinator() {
		return 0, ir.NewEvaluationConsistencyError(fmt.Sprintf("node %s is neither leaf nor combinator", id))
	}
	if active[id] {
		return 0, ir.NewEvaluationConsistencyError(fmt.Sprintf("cycle through node %s", id))
	}
	active[id] = true
	defer delete(active, id)

	left, err := evalRecursive(a, n.Left, memo, active)
	if err != nil {
		return 0, err
	}
	right, err := evalRecursive(a, n.Right, memo, active)
	if err != nil {
		return 0, err
	}
	v, err := n.Op.Apply(left, right)
	if err != nil {
		return 0, ir.NewEvaluationConsistencyError(fmt.Sprintf("node %s: %v", id, err))
	}
	memo[id] = v
	return v, nil
}

// Reachable returns every node reachable from roots, in depth-first
// first-seen order (root, then left subtree, then right subtree).
func Reachable(a *Arena, roots []ir.NodeID) ([]ir.NodeID, error) {
	seen := make(map[ir.NodeID]bool)
	var order []ir.NodeID

	for _, root := range roots {
		stack := []ir.NodeID{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[id] {
				continue
			}
			n, err := a.Get(id)
			if err != nil {
				return nil, consistencyError(err)
			}
			seen[id] = true
			order = append(order, id)
			// Push right first so left is visited first.
			if n.Right != "" {
				stack = append(stack, n.Right)
			}
			if n.Left != "" {
				stack = append(stack, n.Left)
			}
		}
	}
	return order, nil
}

// TopoOrder returns the nodes reachable from roots ordered so that every
// combinator follows both of its children (Kahn's algorithm, FIFO).
//
// A shortfall means the arena holds a cycle among already-built nodes and is
// reported as an evaluation consistency error.
func TopoOrder(a *Arena, roots []ir.NodeID) ([]ir.NodeID, error) {
	nodes, err := Reachable(a, roots)
	if err != nil {
		return nil, err
	}

	indeg := make(map[ir.NodeID]int, len(nodes))
	dependents := make(map[ir.NodeID][]ir.NodeID, len(nodes))
	for _, id := range nodes {
		n, _ := a.Get(id)
		for _, child := range []ir.NodeID{n.Left, n.Right} {
			if child == "" {
				continue
			}
			indeg[id]++
			dependents[child] = append(dependents[child], id)
		}
	}

	queue := make([]ir.NodeID, 0, len(nodes))
	for _, id := range nodes {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]ir.NodeID, 0, len(nodes))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		for _, v := range dependents[u] {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, ir.NewEvaluationConsistencyError(
			fmt.Sprintf("cycle detected during topological sort: ordered %d of %d nodes", len(order), len(nodes)))
	}
	return order, nil
}

// EvalTopo evaluates every node reachable from roots in topological order.
func EvalTopo(a *Arena, roots []ir.NodeID) (map[ir.NodeID]float64, error) {
	order, err := TopoOrder(a, roots)
	if err != nil {
		return nil, err
	}

	vals := make(map[ir.NodeID]float64, len(order))
	for _, id := range order {
		n, _ := a.Get(id)
		if n.IsLeaf() {
			vals[id] = n.Value
			continue
		}
		left, lok := vals[n.Left]
		right, rok := vals[n.Right]
		if !lok || !rok {
			return nil, ir.NewEvaluationConsistencyError(fmt.Sprintf("missing child value for node %s", id))
		}
		v, err := n.Op.Apply(left, right)
		if err != nil {
			return nil, ir.NewEvaluationConsistencyError(fmt.Sprintf("node %s: %v", id, err))
		}
		vals[id] = v
	}
	return vals, nil
}

func consistencyError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ir.NewEvaluationConsistencyError(err.Error())
	}
	return err
}
