package store

import (
	"fmt"

	"github.com/roach88/fam/internal/ir"
)

// marshalRules converts a rule set and its balance instructions to canonical
// JSON TEXT for storage. Rules keep RuleSet order.
func marshalRules(rules *ir.RuleSet, instructions []ir.BalanceInstruction) (string, error) {
	ruleList := make([]any, 0)
	if rules != nil {
		for _, name := range rules.Names() {
			r, _ := rules.Get(name)
			m := ir.RuleToMap(r)
			m["account"] = name
			ruleList = append(ruleList, m)
		}
	}
	instrList := make([]any, len(instructions))
	for i, in := range instructions {
		instrList[i] = ir.InstructionToMap(in)
	}

	data, err := ir.MarshalCanonical(map[string]any{
		"rules":           ruleList,
		"balance_changes": instrList,
	})
	if err != nil {
		return "", fmt.Errorf("marshal rules: %w", err)
	}
	return string(data), nil
}
