package ir

import (
	"net/url"

	"golang.org/x/text/unicode/norm"
)

// Designated account names. The cash account is fixed by convention: it is
// never compiled from a rule, it is synthesized by cash attachment.
const (
	CashAccount              = "Cash"
	DefaultBaseProfitAccount = "ProfitBeforeTax"
)

// DefaultStartYear is the fiscal year assigned to the earliest imported snapshot.
const DefaultStartYear = 2000

// Statement classifies an account by financial statement.
type Statement string

const (
	StatementPL    Statement = "PL"
	StatementBS    Statement = "BS"
	StatementCF    Statement = "CF"
	StatementPPE   Statement = "PPE"
	StatementOther Statement = "OTHER"
)

// ValidStatements defines allowed statement tags.
var ValidStatements = map[Statement]bool{
	StatementPL:    true,
	StatementBS:    true,
	StatementCF:    true,
	StatementPPE:   true,
	StatementOther: true,
}

// Account is a ledger line. Accounts are created on first reference and are
// never removed from a session.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Statement Statement `json:"statement"`
	ParentID  string    `json:"parent_id,omitempty"`
}

// NewAccount returns the implicit account for name: a PL account whose ID is
// derived from the escaped name.
func NewAccount(name string) Account {
	return Account{
		ID:        AccountID(name),
		Name:      name,
		Statement: StatementPL,
	}
}

// AccountID derives the implicit identifier for an account name.
func AccountID(name string) string {
	return "acc:" + url.PathEscape(name)
}

// NormalizeName returns the NFC form of an account name. Names arriving from
// spec files and scenario fixtures go through this at the load boundary so
// that visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Entry is one account value inside a snapshot.
type Entry struct {
	Account string  `json:"account"`
	Value   float64 `json:"value"`
}

// Snapshot is one fiscal year of actual values, in display order.
type Snapshot []Entry

// Get returns the value recorded for account.
func (s Snapshot) Get(account string) (float64, bool) {
	for _, e := range s {
		if e.Account == account {
			return e.Value, true
		}
	}
	return 0, false
}

// Sign selects the direction of a balance instruction.
type Sign string

const (
	SignPlus  Sign = "PLUS"
	SignMinus Sign = "MINUS"
)

// Valid reports whether s is one of the recognized signs.
func (s Sign) Valid() bool {
	return s == SignPlus || s == SignMinus
}

// BalanceInstruction moves value between a target and a counter account after
// a forecast year has been evaluated.
//
// The amount is Value when set, otherwise the settled value of Driver for the
// year being computed.
type BalanceInstruction struct {
	Target   string   `json:"target"`
	IsCredit *bool    `json:"is_credit,omitempty"`
	Sign     Sign     `json:"sign"`
	Driver   string   `json:"driver,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Counter  string   `json:"counter"`
}

// ComputeConfig is the declarative form of a compute request as found in
// spec files. Zero values mean "use the default".
type ComputeConfig struct {
	Years             int    `json:"years,omitempty"`
	BaseProfitAccount string `json:"base_profit,omitempty"`
	CashAccount       string `json:"cash,omitempty"`
}
