package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fam/internal/compiler"
	"github.com/roach88/fam/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	AccountCount     int
	SnapshotCount    int
	RuleCount        int
	InstructionCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE specs to canonical JSON",
		Long: `Compile a CUE forecast spec (accounts, actuals, rules, balance changes,
compute defaults) to canonical JSON.

The output carries the rule set hash that identifies the rules and balance
changes of a compute run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return formatter.loadFailure(err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	spec := loadResult.Spec
	canonical, err := CanonicalSpec(spec)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	if opts.Output != "" {
		data, err := ir.MarshalCanonical(canonical)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
		}
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(canonical)
	}

	stats := CompilationStats{
		AccountCount:     len(spec.Accounts),
		SnapshotCount:    len(spec.Actuals),
		RuleCount:        spec.Rules.Len(),
		InstructionCount: len(spec.Instructions),
	}
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d account(s), %d snapshot(s), %d rule(s), %d balance change(s)\n\n",
		stats.AccountCount, stats.SnapshotCount, stats.RuleCount, stats.InstructionCount)

	if stats.RuleCount > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, name := range spec.Rules.Names() {
			r, _ := spec.Rules.Get(name)
			fmt.Fprintf(w, "  %s: %s\n", name, r.Kind())
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Rule set: %s\n", canonical["ruleset_hash"])
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote canonical spec to %s\n", opts.Output)
	}
	return nil
}

// CanonicalSpec converts a compiled spec to the map form accepted by
// ir.MarshalCanonical, including its rule set hash.
func CanonicalSpec(spec *compiler.Spec) (map[string]any, error) {
	hash, err := ir.RuleSetHash(spec.Rules, spec.Instructions)
	if err != nil {
		return nil, err
	}

	accounts := make([]any, len(spec.Accounts))
	for i, acc := range spec.Accounts {
		m := map[string]any{
			"id":        acc.ID,
			"name":      acc.Name,
			"statement": string(acc.Statement),
		}
		if acc.ParentID != "" {
			m["parent_id"] = acc.ParentID
		}
		accounts[i] = m
	}

	actuals := make([]any, len(spec.Actuals))
	for i, snap := range spec.Actuals {
		entries := make([]any, len(snap))
		for j, e := range snap {
			entries[j] = map[string]any{"account": e.Account, "value": e.Value}
		}
		actuals[i] = entries
	}

	rules := make([]any, 0, spec.Rules.Len())
	for _, name := range spec.Rules.Names() {
		r, _ := spec.Rules.Get(name)
		m := ir.RuleToMap(r)
		m["account"] = name
		rules = append(rules, m)
	}

	instructions := make([]any, len(spec.Instructions))
	for i, in := range spec.Instructions {
		instructions[i] = ir.InstructionToMap(in)
	}

	compute := map[string]any{}
	if spec.Compute.Years != 0 {
		compute["years"] = spec.Compute.Years
	}
	if spec.Compute.BaseProfitAccount != "" {
		compute["base_profit"] = spec.Compute.BaseProfitAccount
	}
	if spec.Compute.CashAccount != "" {
		compute["cash"] = spec.Compute.CashAccount
	}

	return map[string]any{
		"accounts":        accounts,
		"actuals":         actuals,
		"rules":           rules,
		"balance_changes": instructions,
		"compute":         compute,
		"ruleset_hash":    hash,
	}, nil
}
