package compiler

import (
	"fmt"

	"github.com/roach88/fam/internal/graph"
	"github.com/roach88/fam/internal/ir"
)

// cellRef addresses one account in one fiscal year.
type cellRef struct {
	year    int
	account string
}

// Builder compiles rules into arena nodes, one account-year at a time.
//
// A Builder is the per-session cell cache plus the "currently building" set.
// Each (year, account) resolves to exactly one node; resolving it again
// returns the same identifier. Years are either settled (actual or already
// computed, every value pinned as a leaf) or open (compiled from rules).
//
// Thread-safety: Builder is not safe for concurrent use.
type Builder struct {
	arena    *graph.Arena
	rules    *ir.RuleSet
	cash     string
	cells    map[cellRef]ir.NodeID
	building map[cellRef]bool
	settled  map[int]ir.Basis
}

// NewBuilder returns a Builder that stores nodes in arena. The cash account
// defaults to ir.CashAccount.
func NewBuilder(arena *graph.Arena) *Builder {
	return &Builder{
		arena:    arena,
		rules:    ir.NewRuleSet(),
		cash:     ir.CashAccount,
		cells:    make(map[cellRef]ir.NodeID),
		building: make(map[cellRef]bool),
		settled:  make(map[int]ir.Basis),
	}
}

// SetRules replaces the active rule set. Already-built cells are kept.
func (b *Builder) SetRules(rules *ir.RuleSet) {
	if rules == nil {
		rules = ir.NewRuleSet()
	}
	b.rules = rules
}

// SetCashAccount names the account synthesized by cash attachment.
func (b *Builder) SetCashAccount(name string) {
	b.cash = name
}

// Pin stores a settled value as a leaf and makes it the account's node for
// year. The year becomes settled: accounts missing from it are not compiled.
func (b *Builder) Pin(year int, account string, value float64, basis ir.Basis) ir.NodeID {
	tag := "Settled"
	if basis == ir.BasisActual {
		tag = "Actual"
	}
	id := b.arena.Leaf(value, fmt.Sprintf("%s(FY%d)[%s]", account, year, tag),
		&ir.Origin{Account: account, Year: year, Basis: basis})
	b.cells[cellRef{year, account}] = id
	if _, ok := b.settled[year]; !ok || basis == ir.BasisActual {
		b.settled[year] = basis
	}
	return id
}

// Seal pins every entry of a completed forecast year so that later years read
// the settled values, including balance adjustments, rather than the nodes
// that produced them.
func (b *Builder) Seal(year int, values ir.Snapshot) {
	for _, e := range values {
		b.Pin(year, e.Account, e.Value, ir.BasisForecast)
	}
	if _, ok := b.settled[year]; !ok {
		b.settled[year] = ir.BasisForecast
	}
}

// Attach registers a node built outside rule dispatch (cash attachment).
func (b *Builder) Attach(year int, account string, id ir.NodeID) {
	b.cells[cellRef{year, account}] = id
}

// Lookup returns the cached node for account in year.
func (b *Builder) Lookup(year int, account string) (ir.NodeID, bool) {
	id, ok := b.cells[cellRef{year, account}]
	return id, ok
}

// ResetAfter forgets every cell in years after year, returning those years
// to the open state for a whole-range recompute.
func (b *Builder) ResetAfter(year int) {
	for k := range b.cells {
		if k.year > year {
			delete(b.cells, k)
		}
	}
	for y := range b.settled {
		if y > year {
			delete(b.settled, y)
		}
	}
	clear(b.building)
}

// Resolve returns the node for account in year, compiling its rule if needed.
//
// Errors:
//   - BUILD_CYCLE when (year, account) is already being built
//   - EVALUATION_CONSISTENCY when an actual year holds no imported value
//     for account
//   - MISSING_RULE when a forecast year's account has no rule, or is the
//     cash account before cash attachment
func (b *Builder) Resolve(year int, account string) (ir.NodeID, error) {
	key := cellRef{year, account}
	if id, ok := b.cells[key]; ok {
		return id, nil
	}
	if b.building[key] {
		return "", ir.NewBuildCycleError(account, year)
	}
	if basis, ok := b.settled[year]; ok {
		if basis == ir.BasisActual {
			return "", &ir.Error{
				Code:    ir.CodeEvaluationConsistency,
				Message: "actual cell missing from import",
				Account: account,
				Year:    year,
			}
		}
		return "", ir.NewMissingRuleError(account, year)
	}
	if account == b.cash {
		return "", &ir.Error{
			Code:    ir.CodeMissingRule,
			Message: "cash account is synthesized by cash attachment and is not yet available",
			Account: account,
			Year:    year,
		}
	}
	rule, ok := b.rules.Get(account)
	if !ok {
		return "", ir.NewMissingRuleError(account, year)
	}

	b.building[key] = true
	defer delete(b.building, key)

	c := &ruleCompiler{b: b, year: year, account: account}
	if err := rule.Accept(c); err != nil {
		return "", err
	}
	b.cells[key] = c.id
	return c.id, nil
}

// ruleCompiler turns one account-year's rule into nodes.
type ruleCompiler struct {
	b       *Builder
	year    int
	account string
	id      ir.NodeID
}

var _ ir.RuleVisitor = (*ruleCompiler)(nil)

func (c *ruleCompiler) origin() *ir.Origin {
	return &ir.Origin{Account: c.account, Year: c.year, Basis: ir.BasisForecast}
}

func (c *ruleCompiler) leaf(v float64, label string) ir.NodeID {
	return c.b.arena.Leaf(v, label, c.origin())
}

func (c *ruleCompiler) combine(l, r ir.NodeID, op ir.Op, label string) (ir.NodeID, error) {
	return c.b.arena.Combine(l, r, op, label, c.origin())
}

// ref resolves r in the prior year when it is a previous-period reference,
// otherwise in the year being built.
func (c *ruleCompiler) ref(r ir.Ref) (ir.NodeID, error) {
	year := c.year
	if r.Period.IsPrevious() {
		year--
	}
	return c.b.Resolve(year, r.Account)
}

func (c *ruleCompiler) VisitInput(r ir.Input) error {
	c.id = c.leaf(r.Value, fmt.Sprintf("%s(FY%d)[Input]", c.account, c.year))
	return nil
}

func (c *ruleCompiler) VisitFixedValue(r ir.FixedValue) error {
	c.id = c.leaf(r.Value, fmt.Sprintf("%s(FY%d)[Fixed]", c.account, c.year))
	return nil
}

func (c *ruleCompiler) VisitReference(r ir.Reference) error {
	id, err := c.ref(r.Ref)
	if err != nil {
		return err
	}
	c.id = id
	return nil
}

func (c *ruleCompiler) VisitGrowthRate(r ir.GrowthRate) error {
	if len(r.Refs) == 0 {
		return ir.NewRequiredFieldError(c.account, "refs")
	}
	base, err := c.ref(r.Refs[0])
	if err != nil {
		return err
	}
	factor := c.leaf(1+r.Rate, fmt.Sprintf("1+growth(%g)", r.Rate))
	c.id, err = c.combine(base, factor, ir.OpMul, c.account+"=ref*factor")
	return err
}

func (c *ruleCompiler) VisitPercentage(r ir.Percentage) error {
	base, err := c.ref(r.Ref)
	if err != nil {
		return err
	}
	rate := c.leaf(r.Rate, fmt.Sprintf("pct(%g)", r.Rate))
	c.id, err = c.combine(base, rate, ir.OpMul, c.account+"=ref*pct")
	return err
}

// VisitProportionate multiplies the base by a ratio that is always 1; the
// ratio source is not modelled yet.
func (c *ruleCompiler) VisitProportionate(r ir.Proportionate) error {
	baseRef := ir.Ref{Account: c.account, Period: ir.PreviousPeriod()}
	if r.Base != nil {
		baseRef = *r.Base
	}
	base, err := c.ref(baseRef)
	if err != nil {
		return err
	}
	ratio := c.leaf(1, "ratio~placeholder")
	node, err := c.combine(base, ratio, ir.OpMul, c.account+"=base*ratio")
	if err != nil {
		return err
	}
	if r.Coeff != nil {
		coeff := c.leaf(*r.Coeff, fmt.Sprintf("coeff(%g)", *r.Coeff))
		node, err = c.combine(node, coeff, ir.OpMul, c.account+"*coeff")
		if err != nil {
			return err
		}
	}
	c.id = node
	return nil
}

// VisitChildrenSum yields 0; hierarchical roll-up is not implemented.
func (c *ruleCompiler) VisitChildrenSum(ir.ChildrenSum) error {
	c.id = c.leaf(0, c.account+"(children_sum=0)")
	return nil
}

func (c *ruleCompiler) VisitCalculation(r ir.Calculation) error {
	terms := make([]ir.NodeID, 0, len(r.Refs))
	for _, ref := range r.Refs {
		term, err := c.ref(ref)
		if err != nil {
			return err
		}
		if ref.Negative() {
			minus := c.leaf(-1, "-1")
			term, err = c.combine(term, minus, ir.OpMul, ref.Account+"*(-1)")
			if err != nil {
				return err
			}
		}
		terms = append(terms, term)
	}

	switch len(terms) {
	case 0:
		c.id = c.leaf(0, "0")
		return nil
	case 1:
		c.id = terms[0]
		return nil
	}

	acc := terms[0]
	for _, term := range terms[1:] {
		var err error
		acc, err = c.combine(acc, term, ir.OpAdd, c.account+":acc")
		if err != nil {
			return err
		}
	}
	c.id = acc
	return nil
}
