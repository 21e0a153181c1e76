package forecast

import (
	"fmt"

	"github.com/roach88/fam/internal/compiler"
)

// FromSpec creates a Ledger loaded with spec's actuals, rules and balance
// instructions. It does not compute.
func FromSpec(spec *compiler.Spec, opts ...Option) (*Ledger, error) {
	l := New(opts...)
	if len(spec.Actuals) > 0 {
		if err := l.ImportActuals(spec.Actuals, spec.Accounts...); err != nil {
			return nil, fmt.Errorf("import actuals: %w", err)
		}
	} else {
		for _, acc := range spec.Accounts {
			l.accounts[acc.Name] = acc
		}
	}
	l.SetRules(spec.Rules)
	l.SetBalanceChange(spec.Instructions)
	return l, nil
}
