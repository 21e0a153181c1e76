package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRuleSet = "fam/ruleset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RuleSetHash identifies a rule set together with its balance instructions.
// Two compute runs with equal hashes over the same actuals produce the same
// table.
func RuleSetHash(rules *RuleSet, instructions []BalanceInstruction) (string, error) {
	ruleList := make([]any, 0, rules.Len())
	for _, name := range rules.Names() {
		r, _ := rules.Get(name)
		m := RuleToMap(r)
		m["account"] = name
		ruleList = append(ruleList, m)
	}
	instrList := make([]any, len(instructions))
	for i, in := range instructions {
		instrList[i] = InstructionToMap(in)
	}

	canonical, err := MarshalCanonical(map[string]any{
		"rules":           ruleList,
		"balance_changes": instrList,
	})
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleSet, canonical), nil
}

// RuleToMap converts a rule to its canonical map form, the same shape the
// spec loader accepts.
func RuleToMap(r Rule) map[string]any {
	m := map[string]any{"type": string(r.Kind())}
	switch v := r.(type) {
	case Input:
		m["value"] = v.Value
	case FixedValue:
		m["value"] = v.Value
	case Reference:
		m["ref"] = refToMap(v.Ref)
	case GrowthRate:
		m["rate"] = v.Rate
		m["refs"] = refsToList(v.Refs)
	case Percentage:
		m["rate"] = v.Rate
		m["ref"] = refToMap(v.Ref)
	case Proportionate:
		if v.Base != nil {
			m["base"] = refToMap(*v.Base)
		}
		if v.Coeff != nil {
			m["coeff"] = *v.Coeff
		}
	case Calculation:
		m["refs"] = refsToList(v.Refs)
	}
	return m
}

// InstructionToMap converts a balance instruction to its canonical map form.
func InstructionToMap(in BalanceInstruction) map[string]any {
	m := map[string]any{
		"target":  in.Target,
		"sign":    string(in.Sign),
		"counter": in.Counter,
	}
	if in.Driver != "" {
		m["driver"] = in.Driver
	}
	if in.Value != nil {
		m["value"] = *in.Value
	}
	if in.IsCredit != nil {
		m["is_credit"] = *in.IsCredit
	}
	return m
}

func refsToList(refs []Ref) []any {
	out := make([]any, len(refs))
	for i, r := range refs {
		out[i] = refToMap(r)
	}
	return out
}

func refToMap(r Ref) map[string]any {
	period := map[string]any{}
	if r.Period.Kind != "" {
		period["kind"] = string(r.Period.Kind)
	}
	if r.Period.Basis != BasisUnset {
		period["basis"] = string(r.Period.Basis)
	}
	if r.Period.Value != "" {
		period["value"] = r.Period.Value
	}
	if r.Period.Offset != 0 {
		period["offset"] = r.Period.Offset
	}
	m := map[string]any{
		"account": r.Account,
		"period":  period,
	}
	if r.Negative() {
		m["sign"] = -1
	}
	return m
}
