// Package graph holds the node arena and the two evaluators that reduce it.
//
// An Arena owns every node built during a forecasting session. Nodes are
// addressed by opaque ir.NodeID values and never change after they are
// stored, so the evaluators are pure functions over an arena and a root set:
//
//   - EvalRecursive: depth-first with a memo; used to cross-check
//   - EvalTopo: Kahn ordering over the nodes reachable from the roots
//
// Only EvalTopo is used when computing a ledger. Both must agree on every
// reachable node.
package graph
