package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fam/internal/graph"
	"github.com/roach88/fam/internal/ir"
)

// newTestBuilder returns a builder whose year 2000 holds Sales=1000, COGS=600.
func newTestBuilder(t *testing.T, rules *ir.RuleSet) (*Builder, *graph.Arena) {
	t.Helper()
	a := graph.NewArena()
	b := NewBuilder(a)
	b.Pin(2000, "Sales", 1000, ir.BasisActual)
	b.Pin(2000, "COGS", 600, ir.BasisActual)
	b.SetRules(rules)
	return b, a
}

func evalNode(t *testing.T, a *graph.Arena, id ir.NodeID) float64 {
	t.Helper()
	vals, err := graph.EvalTopo(a, []ir.NodeID{id})
	require.NoError(t, err)
	return vals[id]
}

func TestBuilder_PinLabelsAndProvenance(t *testing.T) {
	b, a := newTestBuilder(t, nil)

	id, ok := b.Lookup(2000, "Sales")
	require.True(t, ok)
	n, err := a.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "FF:Sales(FY2000)[Actual]", n.Label)
	assert.Equal(t, &ir.Origin{Account: "Sales", Year: 2000, Basis: ir.BasisActual}, n.Origin)
}

func TestBuilder_GrowthRate(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Sales", ir.GrowthRate{Rate: 0.1, Refs: []ir.Ref{ir.Prev("Sales")}})
	b, a := newTestBuilder(t, rules)

	id, err := b.Resolve(2001, "Sales")
	require.NoError(t, err)
	assert.InDelta(t, 1100, evalNode(t, a, id), 1e-9)

	n, err := a.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ir.OpMul, n.Op)
	assert.Equal(t, "TT:Sales=ref*factor", n.Label)
	factor, err := a.Get(n.Right)
	require.NoError(t, err)
	assert.Equal(t, "FF:1+growth(0.1)", factor.Label)
}

func TestBuilder_ResolveIsCached(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Sales", ir.GrowthRate{Rate: 0.1, Refs: []ir.Ref{ir.Prev("Sales")}})
	rules.Set("COGS", ir.Percentage{Rate: 0.6, Ref: ir.Curr("Sales")})
	rules.Set("Gross", ir.Calculation{Refs: []ir.Ref{ir.Curr("Sales"), ir.Curr("COGS").Negate()}})
	b, a := newTestBuilder(t, rules)

	gross, err := b.Resolve(2001, "Gross")
	require.NoError(t, err)
	size := a.Len()

	sales, err := b.Resolve(2001, "Sales")
	require.NoError(t, err)
	again, err := b.Resolve(2001, "Gross")
	require.NoError(t, err)

	assert.Equal(t, gross, again)
	assert.Equal(t, size, a.Len(), "cached resolves must not add nodes")

	// Sales is shared by COGS and Gross: exactly one Sales node for 2001.
	count := 0
	for _, n := range a.All() {
		if n.ID == sales {
			count++
		}
		if n.Label == "TT:Sales=ref*factor" {
			assert.Equal(t, sales, n.ID)
		}
	}
	assert.Equal(t, 1, count)
	assert.InDelta(t, 440, evalNode(t, a, gross), 1e-9)
}

func TestBuilder_CycleClearsBuildingSet(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("A", ir.Reference{Ref: ir.Curr("B")})
	rules.Set("B", ir.Reference{Ref: ir.Curr("A")})
	b, _ := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, "A")
	require.Error(t, err)
	assert.True(t, ir.IsBuildCycle(err))

	var e *ir.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "A", e.Account)
	assert.Equal(t, 2001, e.Year)
	assert.Empty(t, b.building, "building markers must be cleared on failure")

	_, ok := b.Lookup(2001, "A")
	assert.False(t, ok)
	_, ok = b.Lookup(2001, "B")
	assert.False(t, ok)

	_, err = b.Resolve(2001, "B")
	assert.True(t, ir.IsBuildCycle(err), "a retry must report the cycle again")
}

func TestBuilder_SelfReferenceIsCycle(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("X", ir.Calculation{Refs: []ir.Ref{ir.Curr("Sales"), ir.Curr("X")}})
	rules.Set("Sales", ir.Input{Value: 1})
	b, _ := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, "X")
	assert.ErrorIs(t, err, ir.ErrBuildCycle)
}

func TestBuilder_ResolveErrors(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Fees", ir.Reference{Ref: ir.Prev("Ghost")})
	b, _ := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, "Fees")
	assert.ErrorIs(t, err, ir.ErrEvaluationConsistency)
	assert.False(t, ir.IsValidation(err))
	assert.Equal(t, "EVALUATION_CONSISTENCY: actual cell missing from import (account=Ghost, year=2000)", err.Error())

	_, err = b.Resolve(2001, "Unruled")
	assert.ErrorIs(t, err, ir.ErrMissingRule)

	_, err = b.Resolve(2001, ir.CashAccount)
	assert.ErrorIs(t, err, ir.ErrMissingRule)
	assert.Contains(t, err.Error(), "cash attachment")
}

func TestBuilder_CashNeverCompiledFromRule(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set(ir.CashAccount, ir.FixedValue{Value: 5})
	b, a := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, ir.CashAccount)
	assert.ErrorIs(t, err, ir.ErrMissingRule)

	cash := a.Leaf(42, "cash", nil)
	b.Attach(2001, ir.CashAccount, cash)
	id, err := b.Resolve(2001, ir.CashAccount)
	require.NoError(t, err)
	assert.Equal(t, cash, id)
}

func TestBuilder_CustomCashAccount(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Bank", ir.FixedValue{Value: 5})
	b, a := newTestBuilder(t, rules)
	b.SetCashAccount("Bank")

	_, err := b.Resolve(2001, "Bank")
	assert.ErrorIs(t, err, ir.ErrMissingRule)

	b.SetCashAccount(ir.CashAccount)
	id, err := b.Resolve(2001, "Bank")
	require.NoError(t, err)
	assert.Equal(t, 5.0, evalNode(t, a, id))
}

func TestBuilder_VariantShapes(t *testing.T) {
	tests := []struct {
		name  string
		rule  ir.Rule
		want  float64
		label string
	}{
		{"input", ir.Input{Value: 7}, 7, "FF:Target(FY2001)[Input]"},
		{"fixed", ir.FixedValue{Value: 100}, 100, "FF:Target(FY2001)[Fixed]"},
		{"reference prev", ir.Reference{Ref: ir.Prev("COGS")}, 600, "FF:COGS(FY2000)[Actual]"},
		{"percentage", ir.Percentage{Rate: 0.25, Ref: ir.Prev("Sales")}, 250, "TT:Target=ref*pct"},
		{"children sum", ir.ChildrenSum{}, 0, "FF:Target(children_sum=0)"},
		{"proportionate base", ir.Proportionate{Base: ptr(ir.Prev("Sales"))}, 1000, "TT:Target=base*ratio"},
		{"proportionate coeff", ir.Proportionate{Base: ptr(ir.Prev("Sales")), Coeff: ptr(0.5)}, 500, "TT:Target*coeff"},
		{"calculation empty", ir.Calculation{}, 0, "FF:0"},
		{"calculation single", ir.Calculation{Refs: []ir.Ref{ir.Prev("COGS")}}, 600, "FF:COGS(FY2000)[Actual]"},
		{"calculation negated single", ir.Calculation{Refs: []ir.Ref{ir.Prev("COGS").Negate()}}, -600, "TT:COGS*(-1)"},
		{
			"calculation many",
			ir.Calculation{Refs: []ir.Ref{ir.Prev("Sales"), ir.Prev("COGS").Negate(), ir.Prev("Sales")}},
			1400,
			"TT:Target:acc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := ir.NewRuleSet()
			rules.Set("Target", tt.rule)
			b, a := newTestBuilder(t, rules)

			id, err := b.Resolve(2001, "Target")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, evalNode(t, a, id), 1e-9)

			n, err := a.Get(id)
			require.NoError(t, err)
			assert.Equal(t, tt.label, n.Label)
			assert.Empty(t, graph.Validate(a, []ir.NodeID{id}))
		})
	}
}

func TestBuilder_ProportionateDefaultsToOwnPriorYear(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("COGS", ir.Proportionate{Coeff: ptr(2.0)})
	b, a := newTestBuilder(t, rules)

	id, err := b.Resolve(2001, "COGS")
	require.NoError(t, err)
	assert.InDelta(t, 1200, evalNode(t, a, id), 1e-9)
}

func TestBuilder_GrowthRateWithoutRefs(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Sales", ir.GrowthRate{Rate: 0.1})
	b, _ := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, "Sales")
	assert.ErrorIs(t, err, ir.ErrRequiredField)
	assert.Empty(t, b.building)
}

func TestBuilder_SealPinsSettledValues(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Sales", ir.GrowthRate{Rate: 0.1, Refs: []ir.Ref{ir.Prev("Sales")}})
	rules.Set("COGS", ir.Percentage{Rate: 0.6, Ref: ir.Curr("Sales")})
	b, a := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, "Sales")
	require.NoError(t, err)

	// an adjustment after evaluation changed the settled 2001 value
	b.Seal(2001, ir.Snapshot{{Account: "Sales", Value: 1200}})

	sealed, err := b.Resolve(2001, "Sales")
	require.NoError(t, err)
	n, err := a.Get(sealed)
	require.NoError(t, err)
	assert.True(t, n.IsLeaf())
	assert.Equal(t, "FF:Sales(FY2001)[Settled]", n.Label)

	next, err := b.Resolve(2002, "Sales")
	require.NoError(t, err)
	assert.InDelta(t, 1320, evalNode(t, a, next), 1e-9)

	// sealed years are never recompiled
	_, err = b.Resolve(2001, "COGS")
	assert.ErrorIs(t, err, ir.ErrMissingRule)
}

func TestBuilder_ResetAfter(t *testing.T) {
	rules := ir.NewRuleSet()
	rules.Set("Sales", ir.GrowthRate{Rate: 0.1, Refs: []ir.Ref{ir.Prev("Sales")}})
	b, a := newTestBuilder(t, rules)

	_, err := b.Resolve(2001, "Sales")
	require.NoError(t, err)
	b.Seal(2001, ir.Snapshot{{Account: "Sales", Value: 1100}})

	b.ResetAfter(2000)
	_, ok := b.Lookup(2001, "Sales")
	assert.False(t, ok)
	_, ok = b.Lookup(2000, "Sales")
	assert.True(t, ok)

	b.SetRules(func() *ir.RuleSet {
		r := ir.NewRuleSet()
		r.Set("Sales", ir.GrowthRate{Rate: 0.5, Refs: []ir.Ref{ir.Prev("Sales")}})
		return r
	}())
	id, err := b.Resolve(2001, "Sales")
	require.NoError(t, err)
	assert.InDelta(t, 1500, evalNode(t, a, id), 1e-9)
}
