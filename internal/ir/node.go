package ir

import (
	"fmt"
	"strconv"
)

// NodeID identifies a node inside one arena. IDs are opaque; callers must not
// parse them.
type NodeID string

// NodeKind distinguishes leaves from combinators.
type NodeKind string

const (
	// NodeLeaf (FF) holds a constant value.
	NodeLeaf NodeKind = "FF"
	// NodeCombinator (TT) holds two children and an operator.
	NodeCombinator NodeKind = "TT"
)

// Op is a binary operator on a combinator node.
type Op string

const (
	OpAdd Op = "ADD"
	OpSub Op = "SUB"
	OpMul Op = "MUL"
)

// ValidOps defines the operators an arena accepts.
var ValidOps = map[Op]bool{
	OpAdd: true,
	OpSub: true,
	OpMul: true,
}

// Apply combines two operand values.
func (o Op) Apply(a, b float64) (float64, error) {
	switch o {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", o)
	}
}

// Origin records which account-year a node was built for. It is provenance
// only and never affects evaluation.
type Origin struct {
	Account string `json:"account"`
	Year    int    `json:"year"`
	Basis   Basis  `json:"basis"`
}

// Node is one arena entry: a leaf or a combinator, never both.
type Node struct {
	ID     NodeID   `json:"id"`
	Kind   NodeKind `json:"kind"`
	Value  float64  `json:"value,omitempty"`
	Left   NodeID   `json:"left,omitempty"`
	Right  NodeID   `json:"right,omitempty"`
	Op     Op       `json:"op,omitempty"`
	Label  string   `json:"label,omitempty"`
	Origin *Origin  `json:"origin,omitempty"`
}

// IsLeaf reports whether n holds a value and no children.
func (n Node) IsLeaf() bool {
	return n.Kind == NodeLeaf && n.Left == "" && n.Right == "" && n.Op == ""
}

// IsCombinator reports whether n holds two children and an operator.
func (n Node) IsCombinator() bool {
	return n.Kind == NodeCombinator && n.Left != "" && n.Right != "" && n.Op != ""
}

// FormatNodeID renders the seq-th node identifier.
func FormatNodeID(seq int) NodeID {
	return NodeID("n:" + strconv.Itoa(seq))
}
