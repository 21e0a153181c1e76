package forecast

import (
	"errors"
	"fmt"

	"github.com/roach88/fam/internal/compiler"
	"github.com/roach88/fam/internal/graph"
	"github.com/roach88/fam/internal/ir"
)

// ComputeOptions configures a compute run. Zero values take defaults, except
// CashAccount, which is required.
type ComputeOptions struct {
	Years             int
	BaseProfitAccount string
	CashAccount       string
}

// OptionsFromConfig converts spec-file compute defaults.
func OptionsFromConfig(cfg ir.ComputeConfig) ComputeOptions {
	return ComputeOptions{
		Years:             cfg.Years,
		BaseProfitAccount: cfg.BaseProfitAccount,
		CashAccount:       cfg.CashAccount,
	}
}

func (o ComputeOptions) withDefaults() ComputeOptions {
	if o.Years == 0 {
		o.Years = DefaultYears
	}
	if o.BaseProfitAccount == "" {
		o.BaseProfitAccount = ir.DefaultBaseProfitAccount
	}
	return o
}

// Compute forecasts opts.Years years past the latest actual year.
//
// Rules and balance instructions are validated first, then the cash account
// option and imported actuals are checked; any failure there returns before
// the table is touched. Every forecast year is then recomputed from scratch.
// A build or evaluation failure in year k aborts the run and leaves years
// before k settled.
func (l *Ledger) Compute(opts ComputeOptions) error {
	opts = opts.withDefaults()
	if opts.Years < 0 {
		return ir.NewInvalidParameterError("compute", "years", float64(opts.Years))
	}

	if errs := l.Validate(); len(errs) > 0 {
		return fmt.Errorf("validate: %w", errors.Join(errs...))
	}
	if len(l.actualYears) == 0 {
		return ir.NewInsufficientActualsError("", 0, "no actual years imported")
	}
	if opts.CashAccount != ir.CashAccount {
		return ir.NewCashAccountError(opts.CashAccount)
	}
	if l.rules.Has(opts.CashAccount) {
		l.log.Warn("rule for cash account ignored; cash is attached from base profit",
			"session", l.id,
			"account", opts.CashAccount)
	}

	latest := l.latestActual()
	l.reset(latest)
	l.builder.SetRules(l.rules)
	l.builder.SetCashAccount(opts.CashAccount)

	for k := 1; k <= opts.Years; k++ {
		year := latest + k
		if err := l.computeYear(year, opts); err != nil {
			return fmt.Errorf("compute FY%d: %w", year, err)
		}
		l.last = year
	}

	l.log.Debug("compute finished",
		"session", l.id,
		"from", latest+1,
		"to", latest+opts.Years,
		"nodes", l.arena.Len())
	return nil
}

// Validate runs the pre-flight checks Compute starts with, against the
// ledger's current rules, instructions and accounts.
func (l *Ledger) Validate() []error {
	return compiler.Validate(compiler.ValidationInput{
		Rules:        l.rules,
		Instructions: l.instructions,
		Accounts:     l.knownAccounts(),
		HasActuals:   len(l.actualYears) > 0,
	})
}

// reset drops every forecast year: table cells, cached nodes and roots.
func (l *Ledger) reset(latest int) {
	for key, c := range l.table {
		if c.Year > latest {
			delete(l.table, key)
		}
	}
	for year := range l.roots {
		if year > latest {
			delete(l.roots, year)
		}
	}
	l.builder.ResetAfter(latest)
	l.last = 0
}

func (l *Ledger) computeYear(year int, opts ComputeOptions) error {
	var names []string
	for _, name := range l.rules.Names() {
		if name == opts.CashAccount {
			continue
		}
		if _, err := l.builder.Resolve(year, name); err != nil {
			return err
		}
		names = append(names, name)
	}

	if err := l.attachCash(year, opts.BaseProfitAccount, opts.CashAccount); err != nil {
		return err
	}
	names = append(names, opts.CashAccount)

	roots := make([]ir.NodeID, 0, len(names))
	for _, name := range names {
		id, _ := l.builder.Lookup(year, name)
		roots = append(roots, id)
	}
	vals, err := graph.EvalTopo(l.arena, roots)
	if err != nil {
		return err
	}
	for i, name := range names {
		l.write(year, name, vals[roots[i]])
	}
	l.roots[year] = roots

	l.applyBalanceChanges(year, opts.CashAccount)

	l.builder.Seal(year, l.settled(year))

	l.log.Debug("year settled",
		"session", l.id,
		"year", year,
		"accounts", len(names),
		"instructions", len(l.instructions))
	return nil
}

// attachCash registers cash(year) = cash(year-1) + baseProfit(year).
func (l *Ledger) attachCash(year int, baseProfit, cash string) error {
	prev, err := l.builder.Resolve(year-1, cash)
	if err != nil {
		return err
	}
	profit, err := l.builder.Resolve(year, baseProfit)
	if err != nil {
		return err
	}
	id, err := l.arena.Combine(prev, profit, ir.OpAdd,
		fmt.Sprintf("%s=prev+%s(FY%d)", cash, baseProfit, year),
		&ir.Origin{Account: cash, Year: year, Basis: ir.BasisForecast})
	if err != nil {
		return err
	}
	l.builder.Attach(year, cash, id)
	l.ensureAccount(cash)
	return nil
}

// applyBalanceChanges runs every instruction, in order, against the settled
// table for year. The DAG is not consulted.
//
// The amount is the fixed value or the driver's settled value. The target
// moves by the signed amount; the counter moves with it, except cash, which
// moves the opposite way.
func (l *Ledger) applyBalanceChanges(year int, cash string) {
	for i, instr := range l.instructions {
		var amount float64
		if instr.Value != nil {
			amount = *instr.Value
		} else {
			amount = l.valueAt(year, instr.Driver)
		}
		delta := amount
		if instr.Sign == ir.SignMinus {
			delta = -amount
		}

		target := l.valueAt(year, instr.Target) + delta
		l.write(year, instr.Target, target)

		counterDelta := delta
		if instr.Counter == cash {
			counterDelta = -delta
		}
		counter := l.valueAt(year, instr.Counter) + counterDelta
		l.write(year, instr.Counter, counter)

		l.log.Debug("balance change applied",
			"session", l.id,
			"year", year,
			"index", i,
			"target", instr.Target,
			"counter", instr.Counter,
			"amount", amount,
			"sign", instr.Sign)
	}
}

// settled collects year's table entries in display order.
func (l *Ledger) settled(year int) ir.Snapshot {
	var snap ir.Snapshot
	for _, name := range l.order {
		if v, ok := l.lookup(year, name); ok {
			snap = append(snap, ir.Entry{Account: name, Value: v})
		}
	}
	return snap
}
