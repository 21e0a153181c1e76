package compiler

import (
	"math"

	"github.com/roach88/fam/internal/ir"
)

// ValidationInput is everything the pre-flight checks look at.
type ValidationInput struct {
	Rules        *ir.RuleSet
	Instructions []ir.BalanceInstruction
	// Accounts lists known account names. Ruled accounts are known even when
	// absent here.
	Accounts   []string
	HasActuals bool
}

// Validate checks rules and balance instructions before any year is
// computed. Returns all errors found (does not fail-fast); every error is an
// *ir.Error with the matching code.
func Validate(in ValidationInput) []error {
	known := make(map[string]bool, len(in.Accounts)+in.Rules.Len())
	for _, name := range in.Accounts {
		known[name] = true
	}
	for _, name := range in.Rules.Names() {
		known[name] = true
	}

	var errs []error
	for _, name := range in.Rules.Names() {
		rule, _ := in.Rules.Get(name)
		v := &ruleValidator{account: name, known: known}
		// ruleValidator never returns an error from Accept; it collects.
		_ = rule.Accept(v)
		errs = append(errs, v.errs...)

		if !in.HasActuals && usesPrevious(name, rule) {
			errs = append(errs, ir.NewInsufficientActualsError(name, 0,
				"previous-period reference requires imported actuals"))
		}
	}

	for i, instr := range in.Instructions {
		errs = append(errs, validateInstruction(i, instr, known)...)
	}
	return errs
}

// usesPrevious reports whether rule reads any prior-year value, including
// the implicit self reference of a Proportionate rule without a base.
func usesPrevious(account string, rule ir.Rule) bool {
	if p, ok := rule.(ir.Proportionate); ok && p.Base == nil {
		return true
	}
	for _, ref := range rule.References() {
		if ref.Period.IsPrevious() {
			return true
		}
	}
	return false
}

// ruleValidator collects parameter and reference errors for one rule.
type ruleValidator struct {
	account string
	known   map[string]bool
	errs    []error
}

var _ ir.RuleVisitor = (*ruleValidator)(nil)

func (v *ruleValidator) finite(field string, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		v.errs = append(v.errs, ir.NewInvalidParameterError(v.account, field, x))
	}
}

func (v *ruleValidator) refs(refs ...ir.Ref) {
	for _, r := range refs {
		if r.Account == "" || !v.known[r.Account] {
			v.errs = append(v.errs, ir.NewUnknownReferenceError(v.account, r.Account))
		}
	}
}

func (v *ruleValidator) VisitInput(r ir.Input) error {
	v.finite("value", r.Value)
	return nil
}

func (v *ruleValidator) VisitFixedValue(r ir.FixedValue) error {
	v.finite("value", r.Value)
	return nil
}

func (v *ruleValidator) VisitReference(r ir.Reference) error {
	v.refs(r.Ref)
	return nil
}

func (v *ruleValidator) VisitGrowthRate(r ir.GrowthRate) error {
	v.finite("rate", r.Rate)
	if len(r.Refs) == 0 {
		v.errs = append(v.errs, ir.NewRequiredFieldError(v.account, "refs"))
	}
	v.refs(r.Refs...)
	return nil
}

func (v *ruleValidator) VisitPercentage(r ir.Percentage) error {
	v.finite("rate", r.Rate)
	v.refs(r.Ref)
	return nil
}

func (v *ruleValidator) VisitProportionate(r ir.Proportionate) error {
	if r.Coeff != nil {
		v.finite("coeff", *r.Coeff)
	}
	if r.Base != nil {
		v.refs(*r.Base)
	}
	return nil
}

func (v *ruleValidator) VisitChildrenSum(ir.ChildrenSum) error {
	return nil
}

func (v *ruleValidator) VisitCalculation(r ir.Calculation) error {
	v.refs(r.Refs...)
	return nil
}

func validateInstruction(i int, instr ir.BalanceInstruction, known map[string]bool) []error {
	var errs []error
	if !instr.Sign.Valid() {
		errs = append(errs, ir.NewBalanceInstructionError(i, "invalid sign "+quote(string(instr.Sign))))
	}
	if !known[instr.Target] {
		errs = append(errs, ir.NewBalanceInstructionError(i, "unknown target "+quote(instr.Target)))
	}
	if !known[instr.Counter] {
		errs = append(errs, ir.NewBalanceInstructionError(i, "unknown counter "+quote(instr.Counter)))
	}
	switch {
	case instr.Value == nil && instr.Driver == "":
		errs = append(errs, ir.NewBalanceInstructionError(i, "either value or driver is required"))
	case instr.Value != nil && (math.IsNaN(*instr.Value) || math.IsInf(*instr.Value, 0)):
		errs = append(errs, ir.NewBalanceInstructionError(i, "value must be a finite number"))
	case instr.Value == nil && !known[instr.Driver]:
		errs = append(errs, ir.NewBalanceInstructionError(i, "unknown driver "+quote(instr.Driver)))
	}
	return errs
}

func quote(s string) string {
	return `"` + s + `"`
}
