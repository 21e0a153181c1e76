package graph

import (
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fam/internal/ir"
)

func TestArena_LeafAndCombine(t *testing.T) {
	a := NewArena()
	x := a.Leaf(2, "x", nil)
	y := a.Leaf(3, "y", &ir.Origin{Account: "Sales", Year: 2000, Basis: ir.BasisActual})
	z, err := a.Combine(x, y, ir.OpMul, "x*y", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Len())
	assert.NotEqual(t, x, y)

	n, err := a.Get(z)
	require.NoError(t, err)
	assert.True(t, n.IsCombinator())
	assert.False(t, n.IsLeaf())
	assert.Equal(t, x, n.Left)
	assert.Equal(t, y, n.Right)
	assert.Equal(t, "TT:x*y", n.Label)

	leaf, err := a.Get(y)
	require.NoError(t, err)
	assert.True(t, leaf.IsLeaf())
	assert.Equal(t, "Sales", leaf.Origin.Account)

	all := a.All()
	require.Len(t, all, 3)
	assert.Equal(t, []ir.NodeID{x, y, z}, []ir.NodeID{all[0].ID, all[1].ID, all[2].ID})
}

func TestArena_GetNotFound(t *testing.T) {
	a := NewArena()
	_, err := a.Get("n:42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArena_CombineRejectsMissingChild(t *testing.T) {
	a := NewArena()
	x := a.Leaf(1, "x", nil)

	_, err := a.Combine(x, "n:99", ir.OpAdd, "bad", nil)
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)

	_, err = a.Combine(x, x, ir.Op("DIV"), "bad", nil)
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)
	assert.Equal(t, 1, a.Len(), "failed combines must not store nodes")
}

func TestArena_AllReturnsCopy(t *testing.T) {
	a := NewArena()
	a.Leaf(1, "x", nil)
	all := a.All()
	all[0].Value = 99

	n, err := a.Get(all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n.Value)
}

// buildScenarioGraph builds opIncome = sales - cogs - sga with a shared
// sales node, plus ordinary = opIncome + 10.
func buildScenarioGraph(t *testing.T) (*Arena, []ir.NodeID) {
	t.Helper()
	a := NewArena()
	salesPrev := a.Leaf(1000, "Sales(prev)", nil)
	growth := a.Leaf(1.1, "1+growth(0.1)", nil)
	sales, err := a.Combine(salesPrev, growth, ir.OpMul, "Sales=ref*factor", nil)
	require.NoError(t, err)
	cogs := a.Leaf(600, "COGS", nil)
	sga := a.Leaf(100, "SGA", nil)
	negOne := a.Leaf(-1, "-1", nil)
	negCogs, err := a.Combine(cogs, negOne, ir.OpMul, "COGS*(-1)", nil)
	require.NoError(t, err)
	op, err := a.Combine(sales, negCogs, ir.OpAdd, "OperatingIncome:acc", nil)
	require.NoError(t, err)
	op, err = a.Combine(op, sga, ir.OpSub, "OperatingIncome:acc", nil)
	require.NoError(t, err)
	ten := a.Leaf(10, "NonOpIncome", nil)
	ord, err := a.Combine(op, ten, ir.OpAdd, "OrdinaryIncome:acc", nil)
	require.NoError(t, err)
	return a, []ir.NodeID{sales, op, ord}
}

func TestEval_Values(t *testing.T) {
	a, roots := buildScenarioGraph(t)

	vals, err := EvalTopo(a, roots)
	require.NoError(t, err)
	assert.InDelta(t, 1100, vals[roots[0]], 1e-9)
	assert.InDelta(t, 400, vals[roots[1]], 1e-9)
	assert.InDelta(t, 410, vals[roots[2]], 1e-9)
}

func TestEval_RecursiveMatchesTopo(t *testing.T) {
	a, roots := buildScenarioGraph(t)

	topo, err := EvalTopo(a, roots)
	require.NoError(t, err)

	memo := make(map[ir.NodeID]float64)
	for _, r := range roots {
		_, err := EvalRecursive(a, r, memo)
		require.NoError(t, err)
	}

	reach, err := Reachable(a, roots)
	require.NoError(t, err)
	require.Len(t, topo, len(reach))
	for _, id := range reach {
		assert.Equal(t, math.Round(memo[id]), math.Round(topo[id]), "node %s", id)
	}
}

func TestTopoOrder_ChildrenFirst(t *testing.T) {
	a, roots := buildScenarioGraph(t)

	order, err := TopoOrder(a, roots)
	require.NoError(t, err)

	pos := make(map[ir.NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, id := range order {
		n, err := a.Get(id)
		require.NoError(t, err)
		if n.IsCombinator() {
			assert.Less(t, pos[n.Left], pos[id])
			assert.Less(t, pos[n.Right], pos[id])
		}
	}
}

func TestTopoOrder_RestrictedToReachable(t *testing.T) {
	a := NewArena()
	x := a.Leaf(1, "x", nil)
	a.Leaf(2, "unrelated", nil)

	order, err := TopoOrder(a, []ir.NodeID{x})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{x}, order)
}

func TestTopoOrder_DeterministicFIFO(t *testing.T) {
	a := NewArena()
	x := a.Leaf(1, "x", nil)
	y := a.Leaf(2, "y", nil)
	sum, err := a.Combine(x, y, ir.OpAdd, "x+y", nil)
	require.NoError(t, err)

	order, err := TopoOrder(a, []ir.NodeID{sum})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{x, y, sum}, order)
}

func TestEval_SharedChildAppearsOnce(t *testing.T) {
	a := NewArena()
	x := a.Leaf(3, "x", nil)
	sq, err := a.Combine(x, x, ir.OpMul, "x*x", nil)
	require.NoError(t, err)

	order, err := TopoOrder(a, []ir.NodeID{sq})
	require.NoError(t, err)
	assert.Equal(t, []ir.NodeID{x, sq}, order)

	vals, err := EvalTopo(a, []ir.NodeID{sq})
	require.NoError(t, err)
	assert.Equal(t, 9.0, vals[sq])
}

func TestEval_UnknownRoot(t *testing.T) {
	a := NewArena()
	_, err := EvalTopo(a, []ir.NodeID{"n:7"})
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)

	_, err = EvalRecursive(a, "n:7", nil)
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)
}

func TestValidate_CleanArena(t *testing.T) {
	a, roots := buildScenarioGraph(t)
	assert.Empty(t, Validate(a, roots))
	assert.Empty(t, Validate(a, nil))
}

func TestDOT_Golden(t *testing.T) {
	a := NewArena()
	base := a.Leaf(1000, "Sales(prev)", nil)
	factor := a.Leaf(1.1, "1+growth(0.1)", nil)
	sales, err := a.Combine(base, factor, ir.OpMul, "Sales=ref*factor", nil)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "growth_dot", []byte(DOT(a, []ir.NodeID{sales})))
}

// injectCycle stores two combinators that point at each other. The public
// API cannot build this; it simulates a broken build-time guard.
func injectCycle(a *Arena) (ir.NodeID, ir.NodeID) {
	p := a.add(ir.Node{Kind: ir.NodeCombinator, Left: "n:2", Right: "n:2", Op: ir.OpAdd, Label: "TT:p"})
	q := a.add(ir.Node{Kind: ir.NodeCombinator, Left: p, Right: p, Op: ir.OpAdd, Label: "TT:q"})
	return p, q
}

func TestTopoOrder_CycleIsConsistencyError(t *testing.T) {
	a := NewArena()
	p, q := injectCycle(a)
	require.Equal(t, ir.NodeID("n:2"), q)

	_, err := TopoOrder(a, []ir.NodeID{q})
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)
	assert.Contains(t, err.Error(), "cycle detected during topological sort")

	_, err = EvalTopo(a, []ir.NodeID{p})
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)

	_, err = EvalRecursive(a, p, nil)
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)

	errs := Validate(a, nil)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ir.ErrEvaluationConsistency)
}

func TestValidate_Exclusivity(t *testing.T) {
	a := NewArena()
	x := a.Leaf(1, "x", nil)
	a.add(ir.Node{Kind: ir.NodeCombinator, Left: x, Op: ir.OpAdd, Label: "TT:half"})
	a.add(ir.Node{Kind: ir.NodeCombinator, Left: x, Right: "n:404", Op: ir.OpAdd, Label: "TT:dangling"})

	errs := Validate(a, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "must be either leaf or combinator")
	assert.Contains(t, errs[1].Error(), "undefined child n:404")
}
