package forecast

import (
	"slices"

	"github.com/roach88/fam/internal/ir"
)

// Restored describes a stored session: its accounts in display order, its
// settled cells and its year range.
type Restored struct {
	ID         string
	Accounts   []ir.Account
	Cells      []ir.Cell
	FirstYear  int
	LastActual int
	LastYear   int
}

// Restore rebuilds a read-only view of a stored session. Table, Cells,
// Accounts and the year listings work on it; it has no graph, so Roots and
// DOT are empty until the ledger is recomputed from actuals and rules.
func Restore(r Restored, opts ...Option) *Ledger {
	l := New(slices.Concat(opts, []Option{WithSessionGenerator(NewFixedGenerator(r.ID))})...)
	l.startYear = r.FirstYear

	for _, acc := range r.Accounts {
		if _, ok := l.accounts[acc.Name]; ok {
			continue
		}
		l.accounts[acc.Name] = acc
		l.order = append(l.order, acc.Name)
	}
	for _, c := range r.Cells {
		l.table[c.Key] = c
	}
	for y := r.FirstYear; y <= r.LastActual; y++ {
		l.actualYears = append(l.actualYears, y)
	}
	if r.LastYear > r.LastActual {
		l.last = r.LastYear
	}
	return l
}

// LastYear returns the last forecast year settled by Compute, or the latest
// actual year when nothing has been computed, or 0 before any import.
func (l *Ledger) LastYear() int {
	if l.last != 0 {
		return l.last
	}
	if len(l.actualYears) == 0 {
		return 0
	}
	return l.latestActual()
}

// Years lists the settled fiscal years: every actual year followed by every
// computed one.
func (l *Ledger) Years() []int {
	if len(l.actualYears) == 0 {
		return nil
	}
	years := make([]int, 0, l.LastYear()-l.actualYears[0]+1)
	for y := l.actualYears[0]; y <= l.LastYear(); y++ {
		years = append(years, y)
	}
	return years
}
