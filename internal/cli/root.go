package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
)

// Environment variables that supply flag defaults. cmd/fam loads them from
// .env before the command tree is built.
const (
	EnvDatabase    = "FAM_DB"
	EnvYears       = "FAM_YEARS"
	EnvCashAccount = "FAM_CASH_ACCOUNT"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fam CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fam",
		Short: "fam - multi-year ledger forecasting",
		Long: `Forecast a ledger year by year from imported actuals and per-account rules.

Specs are CUE files declaring accounts, actual snapshots, rules, balance
changes and compute defaults. Each forecast year is compiled into an
expression graph, evaluated, and settled before the next year starts.`,
		SilenceErrors: true, // cmd/fam prints errors that commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))

	return cmd
}

// configureLogging installs a text handler on the command's stderr.
// --verbose lowers the level to Debug, which includes per-year progress.
func configureLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// envInt returns fallback when key is unset or not an integer.
func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
