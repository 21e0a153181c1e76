package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fam/internal/forecast"
	"github.com/roach88/fam/internal/ir"
	"github.com/roach88/fam/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Years      int
	BaseProfit string
	Cash       string
	Statement  string
	Database   string
	DOT        string

	// SessionGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator forecast.SessionIDGenerator
}

// RunResult is the JSON payload of a successful run.
type RunResult struct {
	Session string   `json:"session"`
	Years   []int    `json:"years"`
	Table   ir.Table `json:"table"`
	RunSeq  int64    `json:"run_seq,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Compute a forecast from a spec",
		Long: `Compute a multi-year forecast from a CUE spec and print the settled table.

Flags override the spec's compute defaults. With --db the session's accounts,
settled cells and run settings are stored in a SQLite database (created if it
doesn't exist).

Example:
  fam run ./specs --years 3
  fam run ./specs --statement BS --db ./fam.db --dot graph.dot`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Years, "years", envInt(EnvYears, 0), "forecast years (default from spec, else 5) [$"+EnvYears+"]")
	cmd.Flags().StringVar(&opts.BaseProfit, "base-profit", "", "base profit account (default from spec, else ProfitBeforeTax)")
	cmd.Flags().StringVar(&opts.Cash, "cash", envString(EnvCashAccount, ""), "cash account (default from spec, else Cash) [$"+EnvCashAccount+"]")
	cmd.Flags().StringVar(&opts.Statement, "statement", "", "only show accounts of this statement (PL|BS|CF|PPE|OTHER)")
	cmd.Flags().StringVar(&opts.Database, "db", envString(EnvDatabase, ""), "path to SQLite database [$"+EnvDatabase+"]")
	cmd.Flags().StringVar(&opts.DOT, "dot", "", "write the computed graphs in Graphviz format to this file")

	return cmd
}

func runForecast(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Statement != "" && !ir.ValidStatements[ir.Statement(opts.Statement)] {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid statement %q", opts.Statement))
	}

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return formatter.loadFailure(err)
	}
	spec := loadResult.Spec

	ledgerOpts := []forecast.Option{forecast.WithLogger(slog.Default())}
	if opts.SessionGenerator != nil {
		ledgerOpts = append(ledgerOpts, forecast.WithSessionGenerator(opts.SessionGenerator))
	}
	l, err := forecast.FromSpec(spec, ledgerOpts...)
	if err != nil {
		return outputForecastFailure(formatter, err)
	}

	cfg := resolveCompute(spec.Compute, opts)
	slog.Info("computing forecast", "session", l.ID(), "years", cfg.Years, "base_profit", cfg.BaseProfitAccount)
	if err := l.Compute(forecast.OptionsFromConfig(cfg)); err != nil {
		return outputForecastFailure(formatter, err)
	}

	if opts.DOT != "" {
		if err := os.WriteFile(opts.DOT, []byte(l.DOT()), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing DOT file: %v", err))
		}
	}

	result := RunResult{
		Session: l.ID(),
		Years:   l.Years(),
		Table:   l.Table(forecast.TableQuery{Statement: ir.Statement(opts.Statement), Years: l.Years()}),
	}

	if opts.Database != "" {
		seq, err := persistRun(cmd.Context(), opts.Database, l, cfg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		result.RunSeq = seq
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if err := renderTable(formatter.Writer, result.Table, isTerminal(formatter.Writer)); err != nil {
		return err
	}
	formatter.VerboseLog("session %s", result.Session)
	return nil
}

// resolveCompute layers flags over the spec's compute defaults. The cash
// account falls back to Cash; years and base profit are left to Compute's
// own defaults.
func resolveCompute(cfg ir.ComputeConfig, opts *RunOptions) ir.ComputeConfig {
	if opts.Years > 0 {
		cfg.Years = opts.Years
	}
	if opts.BaseProfit != "" {
		cfg.BaseProfitAccount = ir.NormalizeName(opts.BaseProfit)
	}
	if opts.Cash != "" {
		cfg.CashAccount = ir.NormalizeName(opts.Cash)
	}
	if cfg.CashAccount == "" {
		cfg.CashAccount = ir.CashAccount
	}
	return cfg
}

// persistRun stores the ledger's session and the run settings.
func persistRun(ctx context.Context, path string, l *forecast.Ledger, cfg ir.ComputeConfig) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	actual := l.ActualYears()
	sess := store.Session{
		ID:         l.ID(),
		FirstYear:  actual[0],
		LastActual: actual[len(actual)-1],
		LastYear:   l.LastYear(),
	}
	if _, err := st.WriteSession(ctx, sess, l.Accounts(), l.Cells()); err != nil {
		return 0, err
	}
	run, err := st.WriteRun(ctx, sess.ID, l.Rules(), l.Instructions(), cfg)
	if err != nil {
		return 0, err
	}
	slog.Info("session stored", "db", path, "session", sess.ID, "run", run.Seq)
	return run.Seq, nil
}

// outputForecastFailure reports every error inside err and exits with
// ExitFailure.
func outputForecastFailure(formatter *OutputFormatter, err error) error {
	errs := forecastErrors(err)
	_ = formatter.Errors("Forecast failed", errs)
	return WrapExitError(ExitFailure, "forecast failed", err)
}
