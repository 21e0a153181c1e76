package ir

// PeriodKind is the granularity of a period reference.
type PeriodKind string

const (
	PeriodYearly  PeriodKind = "yearly"
	PeriodMonthly PeriodKind = "monthly"
)

// Basis marks a period as actual or forecast.
type Basis string

const (
	BasisUnset    Basis = ""
	BasisActual   Basis = "actual"
	BasisForecast Basis = "forecast"
)

// Period describes which fiscal year a rule input is read from.
type Period struct {
	Kind   PeriodKind `json:"kind,omitempty"`
	Basis  Basis      `json:"basis,omitempty"`
	Value  string     `json:"value,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// IsPrevious reports whether the period points at the prior fiscal year's
// settled value. Everything else resolves in the year being built.
func (p Period) IsPrevious() bool {
	return p.Basis == BasisActual || p.Offset < 0
}

// PreviousPeriod is the canonical "prior year" period.
func PreviousPeriod() Period {
	return Period{Kind: PeriodYearly, Basis: BasisActual, Offset: -1}
}

// CurrentPeriod is the canonical "same year" period.
func CurrentPeriod() Period {
	return Period{Kind: PeriodYearly, Basis: BasisForecast}
}

// Ref names an account at a period. Sign is only consulted by Calculation,
// where -1 negates the term and any other value adds it.
type Ref struct {
	Account string `json:"account"`
	Period  Period `json:"period"`
	Sign    int    `json:"sign,omitempty"`
}

// Prev references account at the prior fiscal year.
func Prev(account string) Ref {
	return Ref{Account: account, Period: PreviousPeriod(), Sign: 1}
}

// Curr references account in the year being built.
func Curr(account string) Ref {
	return Ref{Account: account, Period: CurrentPeriod(), Sign: 1}
}

// Negate returns a copy of r subtracted inside a Calculation.
func (r Ref) Negate() Ref {
	r.Sign = -1
	return r
}

// Negative reports whether r is subtracted inside a Calculation.
func (r Ref) Negative() bool {
	return r.Sign == -1
}
