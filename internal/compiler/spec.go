package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/fam/internal/ir"
)

// Spec is a compiled forecasting model: the account catalog, actual
// snapshots, rules, balance instructions and compute defaults.
type Spec struct {
	Accounts     []ir.Account
	Actuals      []ir.Snapshot
	Rules        *ir.RuleSet
	Instructions []ir.BalanceInstruction
	Compute      ir.ComputeConfig
}

// CompileSpec parses a CUE value into a Spec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the package root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rules: Sales: { type: "GROWTH_RATE", ... }`)
//	spec, err := CompileSpec(v)
//
// Every section is optional. Account names are NFC-normalized.
func CompileSpec(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{Rules: ir.NewRuleSet()}
	var err error

	if spec.Accounts, err = parseAccounts(v); err != nil {
		return nil, err
	}
	if spec.Actuals, err = parseActuals(v); err != nil {
		return nil, err
	}
	if spec.Rules, err = parseRules(v); err != nil {
		return nil, err
	}
	if spec.Instructions, err = parseInstructions(v); err != nil {
		return nil, err
	}
	if spec.Compute, err = parseCompute(v); err != nil {
		return nil, err
	}
	return spec, nil
}

func parseAccounts(v cue.Value) ([]ir.Account, error) {
	accVal := v.LookupPath(cue.ParsePath("accounts"))
	if !accVal.Exists() {
		return nil, nil
	}
	iter, err := accVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var accounts []ir.Account
	parents := make(map[int]string)
	for iter.Next() {
		name := ir.NormalizeName(iter.Selector().Unquoted())
		field := "accounts." + name
		acc := ir.NewAccount(name)
		val := iter.Value()

		if id, ok, err := optionalString(val, "id"); err != nil {
			return nil, err
		} else if ok {
			acc.ID = id
		}
		if st, ok, err := optionalString(val, "statement"); err != nil {
			return nil, err
		} else if ok {
			if !ir.ValidStatements[ir.Statement(st)] {
				return nil, &CompileError{
					Field:   field + ".statement",
					Message: fmt.Sprintf("invalid statement %q (must be PL, BS, CF, PPE or OTHER)", st),
					Pos:     val.Pos(),
				}
			}
			acc.Statement = ir.Statement(st)
		}
		if parent, ok, err := optionalString(val, "parent"); err != nil {
			return nil, err
		} else if ok {
			parents[len(accounts)] = ir.NormalizeName(parent)
		}
		accounts = append(accounts, acc)
	}

	// parent names resolve to the declared parent's ID when present
	ids := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		ids[acc.Name] = acc.ID
	}
	for i, parent := range parents {
		if id, ok := ids[parent]; ok {
			accounts[i].ParentID = id
		} else {
			accounts[i].ParentID = ir.AccountID(parent)
		}
	}
	return accounts, nil
}

func parseActuals(v cue.Value) ([]ir.Snapshot, error) {
	actVal := v.LookupPath(cue.ParsePath("actuals"))
	if !actVal.Exists() {
		return nil, nil
	}
	iter, err := actVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var snapshots []ir.Snapshot
	for iter.Next() {
		fields, err := iter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		snap := ir.Snapshot{}
		for fields.Next() {
			name := ir.NormalizeName(fields.Selector().Unquoted())
			value, err := number(fields.Value(), fmt.Sprintf("actuals[%d].%s", len(snapshots), name))
			if err != nil {
				return nil, err
			}
			snap = append(snap, ir.Entry{Account: name, Value: value})
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func parseRules(v cue.Value) (*ir.RuleSet, error) {
	rules := ir.NewRuleSet()
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return rules, nil
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := ir.NormalizeName(iter.Selector().Unquoted())
		rule, err := CompileRule(iter.Value(), "rules."+name)
		if err != nil {
			return nil, err
		}
		rules.Set(name, rule)
	}
	return rules, nil
}

// CompileRule parses one rule struct. field prefixes error locations.
func CompileRule(v cue.Value, field string) (ir.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	typ, ok, err := optionalString(v, "type")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}

	switch ir.RuleKind(typ) {
	case ir.KindInput, ir.KindFixedValue:
		val := v.LookupPath(cue.ParsePath("value"))
		if !val.Exists() {
			return nil, &CompileError{Field: field + ".value", Message: "value is required", Pos: v.Pos()}
		}
		x, err := number(val, field+".value")
		if err != nil {
			return nil, err
		}
		if ir.RuleKind(typ) == ir.KindInput {
			return ir.Input{Value: x}, nil
		}
		return ir.FixedValue{Value: x}, nil

	case ir.KindReference:
		ref, err := requiredRef(v, "ref", field)
		if err != nil {
			return nil, err
		}
		return ir.Reference{Ref: ref}, nil

	case ir.KindGrowthRate:
		rate, err := requiredNumber(v, "rate", field)
		if err != nil {
			return nil, err
		}
		// missing refs is a validation error, not a parse error
		refs, err := parseRefList(v, "refs", field)
		if err != nil {
			return nil, err
		}
		return ir.GrowthRate{Rate: rate, Refs: refs}, nil

	case ir.KindPercentage:
		rate, err := requiredNumber(v, "rate", field)
		if err != nil {
			return nil, err
		}
		ref, err := requiredRef(v, "ref", field)
		if err != nil {
			return nil, err
		}
		return ir.Percentage{Rate: rate, Ref: ref}, nil

	case ir.KindProportionate:
		var rule ir.Proportionate
		if base := v.LookupPath(cue.ParsePath("base")); base.Exists() {
			ref, err := parseRef(base, field+".base")
			if err != nil {
				return nil, err
			}
			rule.Base = &ref
		}
		if coeff := v.LookupPath(cue.ParsePath("coeff")); coeff.Exists() {
			x, err := number(coeff, field+".coeff")
			if err != nil {
				return nil, err
			}
			rule.Coeff = &x
		}
		return rule, nil

	case ir.KindChildrenSum:
		return ir.ChildrenSum{}, nil

	case ir.KindCalculation:
		refs, err := parseRefList(v, "refs", field)
		if err != nil {
			return nil, err
		}
		return ir.Calculation{Refs: refs}, nil
	}

	return nil, &CompileError{
		Field:   field + ".type",
		Message: fmt.Sprintf("unknown rule type %q", typ),
		Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
	}
}

// parseRef accepts either an account name (same-year reference) or a struct
// {account, period?, sign?}.
func parseRef(v cue.Value, field string) (ir.Ref, error) {
	if v.IncompleteKind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return ir.Ref{}, formatCUEError(err)
		}
		return ir.Curr(ir.NormalizeName(name)), nil
	}

	account, ok, err := optionalString(v, "account")
	if err != nil {
		return ir.Ref{}, err
	}
	if !ok {
		return ir.Ref{}, &CompileError{Field: field + ".account", Message: "account is required", Pos: v.Pos()}
	}
	ref := ir.Curr(ir.NormalizeName(account))

	if p := v.LookupPath(cue.ParsePath("period")); p.Exists() {
		if ref.Period, err = parsePeriod(p, field+".period"); err != nil {
			return ir.Ref{}, err
		}
	}
	if s := v.LookupPath(cue.ParsePath("sign")); s.Exists() {
		sign, err := s.Int64()
		if err != nil {
			return ir.Ref{}, formatCUEError(err)
		}
		if sign != 1 && sign != -1 {
			return ir.Ref{}, &CompileError{Field: field + ".sign", Message: "sign must be 1 or -1", Pos: s.Pos()}
		}
		ref.Sign = int(sign)
	}
	return ref, nil
}

// parsePeriod accepts "prev", "curr" or {kind?, basis?, value?, offset?}.
func parsePeriod(v cue.Value, field string) (ir.Period, error) {
	if v.IncompleteKind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return ir.Period{}, formatCUEError(err)
		}
		switch s {
		case "prev":
			return ir.PreviousPeriod(), nil
		case "curr":
			return ir.CurrentPeriod(), nil
		}
		return ir.Period{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid period %q (must be \"prev\", \"curr\" or a struct)", s),
			Pos:     v.Pos(),
		}
	}

	p := ir.Period{Kind: ir.PeriodYearly}
	if kind, ok, err := optionalString(v, "kind"); err != nil {
		return p, err
	} else if ok {
		if ir.PeriodKind(kind) != ir.PeriodYearly && ir.PeriodKind(kind) != ir.PeriodMonthly {
			return p, &CompileError{Field: field + ".kind", Message: fmt.Sprintf("invalid kind %q", kind), Pos: v.Pos()}
		}
		p.Kind = ir.PeriodKind(kind)
	}
	if basis, ok, err := optionalString(v, "basis"); err != nil {
		return p, err
	} else if ok {
		if ir.Basis(basis) != ir.BasisActual && ir.Basis(basis) != ir.BasisForecast {
			return p, &CompileError{Field: field + ".basis", Message: fmt.Sprintf("invalid basis %q", basis), Pos: v.Pos()}
		}
		p.Basis = ir.Basis(basis)
	}
	if value, ok, err := optionalString(v, "value"); err != nil {
		return p, err
	} else if ok {
		p.Value = value
	}
	if off := v.LookupPath(cue.ParsePath("offset")); off.Exists() {
		n, err := off.Int64()
		if err != nil {
			return p, formatCUEError(err)
		}
		p.Offset = int(n)
	}
	return p, nil
}

func parseRefList(v cue.Value, name, field string) ([]ir.Ref, error) {
	listVal := v.LookupPath(cue.ParsePath(name))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var refs []ir.Ref
	for iter.Next() {
		ref, err := parseRef(iter.Value(), fmt.Sprintf("%s.%s[%d]", field, name, len(refs)))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func requiredRef(v cue.Value, name, field string) (ir.Ref, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return ir.Ref{}, &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return parseRef(val, field+"."+name)
}

func parseInstructions(v cue.Value) ([]ir.BalanceInstruction, error) {
	bcVal := v.LookupPath(cue.ParsePath("balance_changes"))
	if !bcVal.Exists() {
		return nil, nil
	}
	iter, err := bcVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ir.BalanceInstruction
	for iter.Next() {
		val := iter.Value()
		field := fmt.Sprintf("balance_changes[%d]", len(out))
		var instr ir.BalanceInstruction

		for _, f := range []struct {
			name string
			dst  *string
		}{
			{"target", &instr.Target},
			{"counter", &instr.Counter},
			{"driver", &instr.Driver},
		} {
			s, ok, err := optionalString(val, f.name)
			if err != nil {
				return nil, err
			}
			if ok {
				*f.dst = ir.NormalizeName(s)
			}
		}
		sign, _, err := optionalString(val, "sign")
		if err != nil {
			return nil, err
		}
		instr.Sign = ir.Sign(sign)

		if x := val.LookupPath(cue.ParsePath("value")); x.Exists() {
			n, err := number(x, field+".value")
			if err != nil {
				return nil, err
			}
			instr.Value = &n
		}
		if c := val.LookupPath(cue.ParsePath("is_credit")); c.Exists() {
			b, err := c.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			instr.IsCredit = &b
		}
		out = append(out, instr)
	}
	return out, nil
}

func parseCompute(v cue.Value) (ir.ComputeConfig, error) {
	var cfg ir.ComputeConfig
	cVal := v.LookupPath(cue.ParsePath("compute"))
	if !cVal.Exists() {
		return cfg, nil
	}
	if y := cVal.LookupPath(cue.ParsePath("years")); y.Exists() {
		n, err := y.Int64()
		if err != nil {
			return cfg, formatCUEError(err)
		}
		if n < 1 {
			return cfg, &CompileError{Field: "compute.years", Message: "years must be at least 1", Pos: y.Pos()}
		}
		cfg.Years = int(n)
	}
	if s, ok, err := optionalString(cVal, "base_profit"); err != nil {
		return cfg, err
	} else if ok {
		cfg.BaseProfitAccount = ir.NormalizeName(s)
	}
	if s, ok, err := optionalString(cVal, "cash"); err != nil {
		return cfg, err
	} else if ok {
		cfg.CashAccount = ir.NormalizeName(s)
	}
	return cfg, nil
}

func optionalString(v cue.Value, name string) (string, bool, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return "", false, nil
	}
	s, err := val.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func requiredNumber(v cue.Value, name, field string) (float64, error) {
	val := v.LookupPath(cue.ParsePath(name))
	if !val.Exists() {
		return 0, &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return number(val, field+"."+name)
}

// number reads an int or float CUE value.
func number(v cue.Value, field string) (float64, error) {
	switch v.IncompleteKind() {
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected number, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	x, err := v.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return x, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
