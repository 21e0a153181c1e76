package ir

// RuleKind is the wire tag of a rule variant.
type RuleKind string

const (
	KindInput         RuleKind = "INPUT"
	KindFixedValue    RuleKind = "FIXED_VALUE"
	KindReference     RuleKind = "REFERENCE"
	KindGrowthRate    RuleKind = "GROWTH_RATE"
	KindPercentage    RuleKind = "PERCENTAGE"
	KindProportionate RuleKind = "PROPORTIONATE"
	KindChildrenSum   RuleKind = "CHILDREN_SUM"
	KindCalculation   RuleKind = "CALCULATION"
)

// Rule is an account's forecasting method. It is a closed sum type: only the
// eight variants in this file implement it.
//
// Consumers dispatch with Accept. Adding a variant adds a method to
// RuleVisitor, which breaks every visitor until it handles the new case.
type Rule interface {
	Kind() RuleKind
	// References lists every account the rule reads, in declaration order.
	References() []Ref
	Accept(v RuleVisitor) error
	rule()
}

// RuleVisitor handles each rule variant.
type RuleVisitor interface {
	VisitInput(Input) error
	VisitFixedValue(FixedValue) error
	VisitReference(Reference) error
	VisitGrowthRate(GrowthRate) error
	VisitPercentage(Percentage) error
	VisitProportionate(Proportionate) error
	VisitChildrenSum(ChildrenSum) error
	VisitCalculation(Calculation) error
}

// Input is a raw value entered for the account.
type Input struct {
	Value float64 `json:"value"`
}

// FixedValue is a constant.
type FixedValue struct {
	Value float64 `json:"value"`
}

// Reference copies another account at a period.
type Reference struct {
	Ref Ref `json:"ref"`
}

// GrowthRate is base × (1 + Rate), where base is the first of Refs.
type GrowthRate struct {
	Rate float64 `json:"rate"`
	Refs []Ref   `json:"refs"`
}

// Percentage is Ref × Rate.
type Percentage struct {
	Rate float64 `json:"rate"`
	Ref  Ref     `json:"ref"`
}

// Proportionate is base × ratio × Coeff. The ratio is a constant 1; a nil
// Base means the account itself at the prior year.
type Proportionate struct {
	Base  *Ref     `json:"base,omitempty"`
	Coeff *float64 `json:"coeff,omitempty"`
}

// ChildrenSum is a placeholder for hierarchical roll-up and always yields 0.
type ChildrenSum struct{}

// Calculation is the signed sum of Refs.
type Calculation struct {
	Refs []Ref `json:"refs"`
}

func (Input) rule()         {}
func (FixedValue) rule()    {}
func (Reference) rule()     {}
func (GrowthRate) rule()    {}
func (Percentage) rule()    {}
func (Proportionate) rule() {}
func (ChildrenSum) rule()   {}
func (Calculation) rule()   {}

func (Input) Kind() RuleKind         { return KindInput }
func (FixedValue) Kind() RuleKind    { return KindFixedValue }
func (Reference) Kind() RuleKind     { return KindReference }
func (GrowthRate) Kind() RuleKind    { return KindGrowthRate }
func (Percentage) Kind() RuleKind    { return KindPercentage }
func (Proportionate) Kind() RuleKind { return KindProportionate }
func (ChildrenSum) Kind() RuleKind   { return KindChildrenSum }
func (Calculation) Kind() RuleKind   { return KindCalculation }

func (r Input) Accept(v RuleVisitor) error         { return v.VisitInput(r) }
func (r FixedValue) Accept(v RuleVisitor) error    { return v.VisitFixedValue(r) }
func (r Reference) Accept(v RuleVisitor) error     { return v.VisitReference(r) }
func (r GrowthRate) Accept(v RuleVisitor) error    { return v.VisitGrowthRate(r) }
func (r Percentage) Accept(v RuleVisitor) error    { return v.VisitPercentage(r) }
func (r Proportionate) Accept(v RuleVisitor) error { return v.VisitProportionate(r) }
func (r ChildrenSum) Accept(v RuleVisitor) error   { return v.VisitChildrenSum(r) }
func (r Calculation) Accept(v RuleVisitor) error   { return v.VisitCalculation(r) }

func (Input) References() []Ref      { return nil }
func (FixedValue) References() []Ref { return nil }
func (r Reference) References() []Ref {
	return []Ref{r.Ref}
}
func (r GrowthRate) References() []Ref {
	return append([]Ref(nil), r.Refs...)
}
func (r Percentage) References() []Ref {
	return []Ref{r.Ref}
}

// References omits the implicit self reference used when Base is nil.
func (r Proportionate) References() []Ref {
	if r.Base == nil {
		return nil
	}
	return []Ref{*r.Base}
}
func (ChildrenSum) References() []Ref { return nil }
func (r Calculation) References() []Ref {
	return append([]Ref(nil), r.Refs...)
}

// RuleSet maps account names to rules, preserving the order in which accounts
// were first assigned a rule. Replacing a rule keeps its position.
type RuleSet struct {
	names []string
	rules map[string]Rule
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]Rule)}
}

// Set assigns rule to account.
func (s *RuleSet) Set(account string, rule Rule) {
	if s.rules == nil {
		s.rules = make(map[string]Rule)
	}
	if _, ok := s.rules[account]; !ok {
		s.names = append(s.names, account)
	}
	s.rules[account] = rule
}

// Get returns the rule for account.
func (s *RuleSet) Get(account string) (Rule, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.rules[account]
	return r, ok
}

// Has reports whether account has a rule.
func (s *RuleSet) Has(account string) bool {
	_, ok := s.Get(account)
	return ok
}

// Names returns ruled accounts in declaration order.
func (s *RuleSet) Names() []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s.names...)
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Clone returns an independent copy. Rule values are immutable, so only the
// index is copied.
func (s *RuleSet) Clone() *RuleSet {
	out := NewRuleSet()
	if s == nil {
		return out
	}
	for _, name := range s.names {
		out.Set(name, s.rules[name])
	}
	return out
}
