package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fam/internal/ir"
)

func TestCompileSpecBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		accounts: {
			Sales: { statement: "PL" }
			Cash: { id: "acc:cash", statement: "BS" }
			Deposits: { statement: "BS", parent: "Cash" }
		}

		actuals: [
			{ Sales: 1000, COGS: 600, Cash: 50 },
		]

		rules: {
			Sales: { type: "GROWTH_RATE", rate: 0.1, refs: [{ account: "Sales", period: "prev" }] }
			COGS: { type: "PERCENTAGE", rate: 0.6, ref: "Sales" }
			SGA: { type: "FIXED_VALUE", value: 100 }
			OperatingIncome: {
				type: "CALCULATION"
				refs: ["Sales", { account: "COGS", sign: -1 }, { account: "SGA", sign: -1 }]
			}
		}

		balance_changes: [
			{ target: "Cash", sign: "MINUS", driver: "SGA", counter: "Equity", is_credit: false },
			{ target: "Cash", sign: "PLUS", value: 5, counter: "Equity" },
		]

		compute: { years: 3, base_profit: "OperatingIncome" }
	`)
	require.NoError(t, v.Err())

	spec, err := CompileSpec(v)
	require.NoError(t, err)

	require.Len(t, spec.Accounts, 3)
	assert.Equal(t, ir.Account{ID: "acc:Sales", Name: "Sales", Statement: ir.StatementPL}, spec.Accounts[0])
	assert.Equal(t, "acc:cash", spec.Accounts[1].ID)
	assert.Equal(t, ir.StatementBS, spec.Accounts[1].Statement)
	assert.Equal(t, "acc:cash", spec.Accounts[2].ParentID)

	require.Len(t, spec.Actuals, 1)
	assert.Equal(t, ir.Snapshot{
		{Account: "Sales", Value: 1000},
		{Account: "COGS", Value: 600},
		{Account: "Cash", Value: 50},
	}, spec.Actuals[0])

	assert.Equal(t, []string{"Sales", "COGS", "SGA", "OperatingIncome"}, spec.Rules.Names())
	sales, _ := spec.Rules.Get("Sales")
	assert.Equal(t, ir.GrowthRate{Rate: 0.1, Refs: []ir.Ref{ir.Prev("Sales")}}, sales)
	cogs, _ := spec.Rules.Get("COGS")
	assert.Equal(t, ir.Percentage{Rate: 0.6, Ref: ir.Curr("Sales")}, cogs)
	op, _ := spec.Rules.Get("OperatingIncome")
	assert.Equal(t, ir.Calculation{Refs: []ir.Ref{
		ir.Curr("Sales"), ir.Curr("COGS").Negate(), ir.Curr("SGA").Negate(),
	}}, op)

	require.Len(t, spec.Instructions, 2)
	assert.Equal(t, "SGA", spec.Instructions[0].Driver)
	assert.Equal(t, ir.SignMinus, spec.Instructions[0].Sign)
	require.NotNil(t, spec.Instructions[0].IsCredit)
	assert.False(t, *spec.Instructions[0].IsCredit)
	require.NotNil(t, spec.Instructions[1].Value)
	assert.Equal(t, 5.0, *spec.Instructions[1].Value)

	assert.Equal(t, ir.ComputeConfig{Years: 3, BaseProfitAccount: "OperatingIncome"}, spec.Compute)
}

func TestCompileSpecEmpty(t *testing.T) {
	ctx := cuecontext.New()
	spec, err := CompileSpec(ctx.CompileString(`{}`))
	require.NoError(t, err)
	assert.Empty(t, spec.Accounts)
	assert.Empty(t, spec.Actuals)
	assert.Equal(t, 0, spec.Rules.Len())
	assert.Equal(t, ir.ComputeConfig{}, spec.Compute)
}

func TestCompileRuleVariants(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ir.Rule
	}{
		{"input", `{ type: "INPUT", value: 7 }`, ir.Input{Value: 7}},
		{"reference prev", `{ type: "REFERENCE", ref: { account: "Sales", period: "prev" } }`, ir.Reference{Ref: ir.Prev("Sales")}},
		{"children sum", `{ type: "CHILDREN_SUM" }`, ir.ChildrenSum{}},
		{"proportionate default", `{ type: "PROPORTIONATE" }`, ir.Proportionate{}},
		{
			"proportionate full",
			`{ type: "PROPORTIONATE", base: { account: "Sales", period: "prev" }, coeff: 0.5 }`,
			ir.Proportionate{Base: ptr(ir.Prev("Sales")), Coeff: ptr(0.5)},
		},
		{"growth without refs", `{ type: "GROWTH_RATE", rate: 0.1 }`, ir.GrowthRate{Rate: 0.1}},
		{
			"explicit period struct",
			`{ type: "REFERENCE", ref: { account: "Sales", period: { kind: "yearly", basis: "forecast", offset: -1 } } }`,
			ir.Reference{Ref: ir.Ref{
				Account: "Sales",
				Period:  ir.Period{Kind: ir.PeriodYearly, Basis: ir.BasisForecast, Offset: -1},
				Sign:    1,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			rule, err := CompileRule(v, "rules.X")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule)
		})
	}
}

func TestCompileRuleErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing type", `{ value: 1 }`, "rules.X.type"},
		{"unknown type", `{ type: "MAGIC" }`, "rules.X.type"},
		{"missing value", `{ type: "INPUT" }`, "rules.X.value"},
		{"string value", `{ type: "FIXED_VALUE", value: "ten" }`, "rules.X.value"},
		{"missing rate", `{ type: "PERCENTAGE", ref: "Sales" }`, "rules.X.rate"},
		{"missing ref", `{ type: "REFERENCE" }`, "rules.X.ref"},
		{"ref without account", `{ type: "REFERENCE", ref: { period: "prev" } }`, "rules.X.ref.account"},
		{"bad period", `{ type: "REFERENCE", ref: { account: "A", period: "later" } }`, "rules.X.ref.period"},
		{"bad basis", `{ type: "REFERENCE", ref: { account: "A", period: { basis: "guess" } } }`, "rules.X.ref.period.basis"},
		{"bad sign", `{ type: "CALCULATION", refs: [{ account: "A", sign: 2 }] }`, "rules.X.refs[0].sign"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileRule(v, "rules.X")
			require.Error(t, err)

			var compileErr *CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileSpecInvalidStatement(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`accounts: Sales: { statement: "XX" }`)
	require.NoError(t, v.Err())

	_, err := CompileSpec(v)
	var compileErr *CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "accounts.Sales.statement", compileErr.Field)
	assert.Contains(t, compileErr.Message, `"XX"`)
}

func TestCompileSpecInvalidYears(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`compute: years: 0`)
	require.NoError(t, v.Err())

	_, err := CompileSpec(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "years must be at least 1")
}

func TestCompileSpecNormalizesNames(t *testing.T) {
	ctx := cuecontext.New()
	// decomposed e + combining acute accent in the source
	v := ctx.CompileString("actuals: [{ \"Cafe\u0301\": 1 }]\nrules: \"Cafe\u0301\": { type: \"INPUT\", value: 2 }")
	require.NoError(t, v.Err())

	spec, err := CompileSpec(v)
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", spec.Actuals[0][0].Account)
	assert.True(t, spec.Rules.Has("Caf\u00e9"))
}

func TestCompileSpecCUEError(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rules: Sales: { type: "INPUT", value: 1 }
		rules: Sales: { value: 2 }
	`)

	_, err := CompileSpec(v)
	require.Error(t, err)
}
