package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fam/internal/compiler"
	"github.com/roach88/fam/internal/forecast"
	"github.com/roach88/fam/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                    `json:"valid"`
	Errors   []CLIError              `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate rules and balance changes without computing",
		Long: `Validate a forecast spec without computing it.

Reports every unknown reference, non-finite parameter, missing field and
malformed balance change at once, and warns about same-year reference loops
that would fail compute with BUILD_CYCLE.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return formatter.loadFailure(err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	result := validateSpec(loadResult.Spec)
	for _, w := range result.Warnings {
		formatter.VerboseLog("cycle: %s", w.Message)
	}

	if formatter.Format == "json" {
		if !result.Valid {
			if err := formatter.Errors("Validation failed", result.Errors); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
		}
		return formatter.Success(result)
	}

	styled := isTerminal(formatter.Writer)
	w := formatter.Writer
	if !result.Valid {
		_ = formatter.Errors("Validation failed", result.Errors)
		fmt.Fprintln(w)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "%s %s\n", style(warnStyle, "!", styled), warn.Message)
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	fmt.Fprintf(w, "%s All rules and balance changes valid\n", style(successStyle, "✓", styled))
	return nil
}

// validateSpec runs the compute pre-flight checks and static cycle analysis
// over a compiled spec.
func validateSpec(spec *compiler.Spec) ValidationResult {
	result := ValidationResult{Warnings: compiler.AnalyzeCycles(spec.Rules)}

	var errs []error
	l, err := forecast.FromSpec(spec)
	if err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, l.Validate()...)
	}
	if cash := spec.Compute.CashAccount; cash != "" && cash != ir.CashAccount {
		errs = append(errs, ir.NewCashAccountError(cash))
	}

	for _, e := range errs {
		result.Errors = append(result.Errors, CLIError{Code: MapForecastErrorCode(e), Message: e.Error()})
	}
	result.Valid = len(result.Errors) == 0
	return result
}
