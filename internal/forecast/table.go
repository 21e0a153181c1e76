package forecast

import (
	"cmp"
	"math"
	"slices"

	"github.com/roach88/fam/internal/graph"
	"github.com/roach88/fam/internal/ir"
)

// TableQuery selects a statement and columns. An empty Statement selects
// every account; nil Years means AllYears.
type TableQuery struct {
	Statement ir.Statement
	Years     []int
}

// Table projects the settled table onto q.
//
// Rows follow first-seen account order. A year without a stored value uses
// the nearest earlier year's value, else 0. Values are rounded with Round
// here and nowhere else; non-finite values pass through unrounded.
func (l *Ledger) Table(q TableQuery) ir.Table {
	years := q.Years
	if years == nil {
		years = l.AllYears()
	}

	t := ir.Table{
		Statement: q.Statement,
		Rows:      []ir.TableRow{},
		Columns:   make([]string, len(years)),
		Data:      [][]float64{},
	}
	for j, y := range years {
		t.Columns[j] = ir.PeriodKey(y)
	}

	for _, name := range l.order {
		acc := l.accounts[name]
		if q.Statement != "" && acc.Statement != q.Statement {
			continue
		}
		t.Rows = append(t.Rows, ir.TableRow{AccountID: acc.ID, Name: name, ParentID: acc.ParentID})

		row := make([]float64, len(years))
		for j, y := range years {
			row[j] = Round(l.valueAt(y, name))
		}
		t.Data = append(t.Data, row)
	}
	return t
}

// Round converts a settled value to its displayed integral value. Halves
// round toward positive infinity, so -100.5 shows as -100. NaN and
// infinities are returned as they are.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r := math.Round(v)
	if v-r == 0.5 {
		r++
	}
	if r == 0 {
		return 0
	}
	return r
}

// SnapshotLatestActual returns the latest actual year's values by account.
func (l *Ledger) SnapshotLatestActual() map[string]float64 {
	out := make(map[string]float64)
	if len(l.actualYears) == 0 {
		return out
	}
	latest := l.latestActual()
	for _, name := range l.order {
		if v, ok := l.lookup(latest, name); ok {
			out[name] = v
		}
	}
	return out
}

// AllYears lists every displayable fiscal year: from the first actual year
// to the later of five years past the latest actual and the last computed
// year. Nil before any import.
func (l *Ledger) AllYears() []int {
	if len(l.actualYears) == 0 {
		return nil
	}
	last := max(l.latestActual()+displayHorizon, l.last)
	years := make([]int, 0, last-l.actualYears[0]+1)
	for y := l.actualYears[0]; y <= last; y++ {
		years = append(years, y)
	}
	return years
}

// ActualYears returns the imported fiscal years, oldest first.
func (l *Ledger) ActualYears() []int {
	return slices.Clone(l.actualYears)
}

// ComputedYears returns the forecast years settled by the last Compute.
func (l *Ledger) ComputedYears() []int {
	years := make([]int, 0, len(l.roots))
	for y := range l.roots {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// Accounts returns registered accounts in display order.
func (l *Ledger) Accounts() []ir.Account {
	out := make([]ir.Account, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.accounts[name])
	}
	return out
}

// Cells returns every settled value, ordered by year then display order.
func (l *Ledger) Cells() []ir.Cell {
	rank := make(map[string]int, len(l.order))
	for i, name := range l.order {
		rank[l.accounts[name].ID] = i
	}
	cells := make([]ir.Cell, 0, len(l.table))
	for _, c := range l.table {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b ir.Cell) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(rank[a.AccountID], rank[b.AccountID])
	})
	return cells
}

// Roots returns the evaluated root nodes of every computed year, in year order.
func (l *Ledger) Roots() []ir.NodeID {
	var roots []ir.NodeID
	for _, y := range l.ComputedYears() {
		roots = append(roots, l.roots[y]...)
	}
	return roots
}

// DOT exports the computed years' graphs in Graphviz format.
func (l *Ledger) DOT() string {
	return graph.DOT(l.arena, l.Roots())
}
