package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/fam/internal/ir"
)

// ErrNotFound is returned by Get for an identifier the arena never issued.
var ErrNotFound = errors.New("node not found")

// Arena is an append-only node registry.
//
// Thread-safety: Arena is not safe for concurrent use. It is owned by one
// ledger, which serializes access.
type Arena struct {
	nodes []ir.Node
	index map[ir.NodeID]int
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[ir.NodeID]int)}
}

// Leaf stores a constant node and returns its identifier.
func (a *Arena) Leaf(value float64, label string, origin *ir.Origin) ir.NodeID {
	return a.add(ir.Node{
		Kind:   ir.NodeLeaf,
		Value:  value,
		Label:  "FF:" + label,
		Origin: origin,
	})
}

// Combine stores a combinator over two existing nodes.
func (a *Arena) Combine(left, right ir.NodeID, op ir.Op, label string, origin *ir.Origin) (ir.NodeID, error) {
	if !ir.ValidOps[op] {
		return "", ir.NewEvaluationConsistencyError(fmt.Sprintf("unknown operator %q", op))
	}
	for _, child := range []ir.NodeID{left, right} {
		if _, ok := a.index[child]; !ok {
			return "", ir.NewEvaluationConsistencyError(fmt.Sprintf("combinator %q references missing child %q", label, child))
		}
	}
	return a.add(ir.Node{
		Kind:   ir.NodeCombinator,
		Left:   left,
		Right:  right,
		Op:     op,
		Label:  "TT:" + label,
		Origin: origin,
	}), nil
}

func (a *Arena) add(n ir.Node) ir.NodeID {
	if a.index == nil {
		a.index = make(map[ir.NodeID]int)
	}
	n.ID = ir.FormatNodeID(len(a.nodes) + 1)
	a.index[n.ID] = len(a.nodes)
	a.nodes = append(a.nodes, n)
	return n.ID
}

// Get returns the node stored under id.
func (a *Arena) Get(id ir.NodeID) (ir.Node, error) {
	i, ok := a.index[id]
	if !ok {
		return ir.Node{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a.nodes[i], nil
}

// All returns every node in insertion order.
func (a *Arena) All() []ir.Node {
	return append([]ir.Node{}, a.nodes...)
}

// Len returns the number of stored nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}
