// Package testutil provides deterministic generators and ledger fixtures
// shared by package tests.
package testutil

import "github.com/roach88/fam/internal/ir"

// Fixture is a ledger input: snapshots, catalog, rules and instructions,
// plus the compute settings the scenario expects.
type Fixture struct {
	Actuals      []ir.Snapshot
	Catalog      []ir.Account
	Rules        *ir.RuleSet
	Instructions []ir.BalanceInstruction
	Years        int
	BaseProfit   string
}

// IncomeStatement is one actual year of a small PL with prior cash 50:
// sales grow 10%, other lines flat, operating and ordinary income derived.
// One forecast year settles at Sales 1100, OperatingIncome 400,
// OrdinaryIncome 405, Cash 455.
func IncomeStatement() Fixture {
	rules := ir.NewRuleSet()
	rules.Set("Sales", ir.GrowthRate{Rate: 0.1, Refs: []ir.Ref{ir.Prev("Sales")}})
	for _, name := range []string{"COGS", "SGA", "NonOpIncome", "NonOpExpense"} {
		rules.Set(name, ir.GrowthRate{Rate: 0, Refs: []ir.Ref{ir.Prev(name)}})
	}
	rules.Set("OperatingIncome", ir.Calculation{Refs: []ir.Ref{
		ir.Curr("Sales"), ir.Curr("COGS").Negate(), ir.Curr("SGA").Negate(),
	}})
	rules.Set("OrdinaryIncome", ir.Calculation{Refs: []ir.Ref{
		ir.Curr("OperatingIncome"), ir.Curr("NonOpIncome"), ir.Curr("NonOpExpense").Negate(),
	}})

	return Fixture{
		Actuals: []ir.Snapshot{{
			{Account: "Sales", Value: 1000},
			{Account: "COGS", Value: 600},
			{Account: "SGA", Value: 100},
			{Account: "NonOpIncome", Value: 10},
			{Account: "NonOpExpense", Value: 5},
			{Account: "Cash", Value: 50},
		}},
		Rules:      rules,
		Years:      1,
		BaseProfit: "OrdinaryIncome",
	}
}

// balanceSheet is two identical actual years of cash, retained earnings,
// PP&E, depreciation and capex, with base profit pinned to 0.
func balanceSheet() Fixture {
	snap := ir.Snapshot{
		{Account: "Cash", Value: 100},
		{Account: "RetainedEarnings", Value: 500},
		{Account: "PPE", Value: 1000},
		{Account: "Depreciation", Value: 0},
		{Account: "Capex", Value: 0},
	}
	catalog := []ir.Account{
		{ID: "CASH", Name: "Cash", Statement: ir.StatementPL},
		{ID: "RE", Name: "RetainedEarnings", Statement: ir.StatementPL},
		{ID: "PPE", Name: "PPE", Statement: ir.StatementPL},
		{ID: "DEP", Name: "Depreciation", Statement: ir.StatementPL},
		{ID: "CAPEX", Name: "Capex", Statement: ir.StatementPL},
		{ID: "OI", Name: "OrdinaryIncome", Statement: ir.StatementPL},
	}
	rules := ir.NewRuleSet()
	rules.Set("OrdinaryIncome", ir.FixedValue{Value: 0})

	return Fixture{
		Actuals:    []ir.Snapshot{snap, append(ir.Snapshot(nil), snap...)},
		Catalog:    catalog,
		Rules:      rules,
		Years:      1,
		BaseProfit: "OrdinaryIncome",
	}
}

// Depreciation decreases PPE by a depreciation account fixed at 100, with
// retained earnings as counter. FY2002 settles at PPE 900,
// RetainedEarnings 400, Cash 100.
func Depreciation() Fixture {
	f := balanceSheet()
	f.Rules.Set("Depreciation", ir.FixedValue{Value: 100})
	isCredit := false
	f.Instructions = []ir.BalanceInstruction{{
		Target:   "PPE",
		IsCredit: &isCredit,
		Sign:     ir.SignMinus,
		Driver:   "Depreciation",
		Counter:  "RetainedEarnings",
	}}
	return f
}

// CapitalExpenditure increases PPE by a fixed 200 paid from cash. FY2002
// settles at PPE 1200, Cash -100, RetainedEarnings 500.
func CapitalExpenditure() Fixture {
	f := balanceSheet()
	isCredit := false
	value := 200.0
	f.Instructions = []ir.BalanceInstruction{{
		Target:   "PPE",
		IsCredit: &isCredit,
		Sign:     ir.SignPlus,
		Value:    &value,
		Counter:  ir.CashAccount,
	}}
	return f
}
