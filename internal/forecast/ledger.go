package forecast

import (
	"log/slog"
	"slices"

	"github.com/roach88/fam/internal/compiler"
	"github.com/roach88/fam/internal/graph"
	"github.com/roach88/fam/internal/ir"
)

// DefaultYears is the forecast horizon used when ComputeOptions.Years is 0.
const DefaultYears = 5

// displayHorizon is how many years past the latest actual AllYears covers
// when nothing longer has been computed.
const displayHorizon = 5

// Ledger is one forecasting session.
//
// It owns the settled table, the node arena and the Builder's per-year
// caches. Nothing is shared between ledgers.
//
// Thread-safety: Ledger is not safe for concurrent use.
type Ledger struct {
	id        string
	log       *slog.Logger
	startYear int

	arena   *graph.Arena
	builder *compiler.Builder

	accounts map[string]ir.Account // by name
	order    []string              // first-seen display order

	actualYears  []int
	rules        *ir.RuleSet
	instructions []ir.BalanceInstruction

	table map[string]ir.Cell // by cell key
	roots map[int][]ir.NodeID
	last  int // last computed forecast year, 0 if none
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// WithStartYear sets the fiscal year assigned to the earliest snapshot.
//
// Default: 2000 (ir.DefaultStartYear)
func WithStartYear(year int) Option {
	return func(l *Ledger) {
		l.startYear = year
	}
}

// WithSessionGenerator sets the session ID source. Default: UUIDv7Generator.
func WithSessionGenerator(gen SessionIDGenerator) Option {
	return func(l *Ledger) {
		l.id = gen.Generate()
	}
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		log:       slog.Default(),
		startYear: ir.DefaultStartYear,
		accounts:  make(map[string]ir.Account),
		rules:     ir.NewRuleSet(),
		table:     make(map[string]ir.Cell),
		roots:     make(map[int][]ir.NodeID),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.id == "" {
		l.id = UUIDv7Generator{}.Generate()
	}
	l.arena = graph.NewArena()
	l.builder = compiler.NewBuilder(l.arena)
	l.builder.SetRules(l.rules)
	return l
}

// ID returns the session identifier.
func (l *Ledger) ID() string {
	return l.id
}

// ImportActuals loads historical snapshots, oldest first. Snapshot i becomes
// fiscal year startYear+i; every value is written to the settled table and
// pinned as an actual leaf, so historical years are never compiled from rules.
//
// catalog supplies account IDs, statements and parents. Accounts missing from
// it are created on first reference as PL accounts. Importing again starts a
// fresh session history; rules and instructions are kept.
func (l *Ledger) ImportActuals(snapshots []ir.Snapshot, catalog ...ir.Account) error {
	if len(snapshots) == 0 {
		return ir.NewInsufficientActualsError("", 0, "no snapshots to import")
	}

	l.arena = graph.NewArena()
	l.builder = compiler.NewBuilder(l.arena)
	l.builder.SetRules(l.rules)
	l.accounts = make(map[string]ir.Account, len(catalog))
	l.order = nil
	l.table = make(map[string]ir.Cell)
	l.roots = make(map[int][]ir.NodeID)
	l.last = 0

	for _, acc := range catalog {
		if acc.ID == "" {
			acc.ID = ir.AccountID(acc.Name)
		}
		if acc.Statement == "" {
			acc.Statement = ir.StatementPL
		}
		l.accounts[acc.Name] = acc
	}

	l.actualYears = make([]int, len(snapshots))
	for i, snap := range snapshots {
		year := l.startYear + i
		l.actualYears[i] = year
		for _, e := range snap {
			l.write(year, e.Account, e.Value)
			l.builder.Pin(year, e.Account, e.Value, ir.BasisActual)
		}
	}

	l.log.Debug("actuals imported",
		"session", l.id,
		"years", len(l.actualYears),
		"first", l.actualYears[0],
		"accounts", len(l.order))
	return nil
}

// SetRules replaces the active rule set. Already-computed years are not
// invalidated; the next Compute recomputes the whole range.
func (l *Ledger) SetRules(rules *ir.RuleSet) {
	l.rules = rules.Clone()
	l.builder.SetRules(l.rules)
}

// UpdateRule replaces a single account's rule.
func (l *Ledger) UpdateRule(account string, rule ir.Rule) {
	l.ensureAccount(account)
	l.rules.Set(account, rule)
}

// Rules returns a copy of the active rule set.
func (l *Ledger) Rules() *ir.RuleSet {
	return l.rules.Clone()
}

// SetBalanceChange replaces the active balance & change instructions.
func (l *Ledger) SetBalanceChange(instructions []ir.BalanceInstruction) {
	l.instructions = slices.Clone(instructions)
}

// Instructions returns a copy of the active balance & change instructions.
func (l *Ledger) Instructions() []ir.BalanceInstruction {
	return slices.Clone(l.instructions)
}

// Arena exposes the node arena for diagnostics.
func (l *Ledger) Arena() *graph.Arena {
	return l.arena
}

// ensureAccount returns the registered account for name, creating an implicit
// PL account on first reference, and puts it in display order.
func (l *Ledger) ensureAccount(name string) ir.Account {
	acc, ok := l.accounts[name]
	if !ok {
		acc = ir.NewAccount(name)
		l.accounts[name] = acc
	}
	if !slices.Contains(l.order, name) {
		l.order = append(l.order, name)
	}
	return acc
}

// write stores a settled value for account in year.
func (l *Ledger) write(year int, account string, value float64) {
	acc := l.ensureAccount(account)
	key := ir.CellKey(acc.Statement, ir.PeriodKey(year), acc.ID)
	l.table[key] = ir.Cell{
		Key:       key,
		Statement: acc.Statement,
		Year:      year,
		AccountID: acc.ID,
		Value:     value,
	}
}

// lookup returns the settled value for account in year.
func (l *Ledger) lookup(year int, account string) (float64, bool) {
	acc, ok := l.accounts[account]
	if !ok {
		return 0, false
	}
	c, ok := l.table[ir.CellKey(acc.Statement, ir.PeriodKey(year), acc.ID)]
	return c.Value, ok
}

// valueAt returns account's settled value in year, falling back to the
// nearest earlier year that has one, else 0.
func (l *Ledger) valueAt(year int, account string) float64 {
	if len(l.actualYears) == 0 {
		return 0
	}
	for y := year; y >= l.actualYears[0]; y-- {
		if v, ok := l.lookup(y, account); ok {
			return v
		}
	}
	return 0
}

// knownAccounts lists every registered account name.
func (l *Ledger) knownAccounts() []string {
	names := make([]string, 0, len(l.accounts))
	for name := range l.accounts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (l *Ledger) latestActual() int {
	return l.actualYears[len(l.actualYears)-1]
}
