package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fam/internal/forecast"
	"github.com/roach88/fam/internal/ir"
	"github.com/roach88/fam/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database  string
	Session   string
	Statement string
	List      bool
}

// ShowResult is the JSON payload of show.
type ShowResult struct {
	Session store.Session `json:"session"`
	Years   []int         `json:"years"`
	Table   ir.Table      `json:"table"`
	Runs    []store.Run   `json:"runs"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a stored forecast session",
		Long: `Show the settled table of a session stored by 'fam run --db'.

Without --session the most recently stored session is shown. --list prints
the stored sessions instead.

Example:
  fam show --db ./fam.db
  fam show --db ./fam.db --session 01890a5d-... --statement BS`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", envString(EnvDatabase, ""), "path to SQLite database [$"+EnvDatabase+"]")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: latest)")
	cmd.Flags().StringVar(&opts.Statement, "statement", "", "only show accounts of this statement (PL|BS|CF|PPE|OTHER)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list stored sessions")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "--db is required (or set "+EnvDatabase+")")
	}
	if opts.Statement != "" && !ir.ValidStatements[ir.Statement(opts.Statement)] {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid statement %q", opts.Statement))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.List {
		return listSessions(ctx, formatter, st)
	}

	var (
		sess store.Session
		ok   bool
	)
	if opts.Session != "" {
		sess, ok, err = st.ReadSession(ctx, opts.Session)
	} else {
		sess, ok, err = st.LatestSession(ctx)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	if !ok {
		msg := "no sessions stored"
		if opts.Session != "" {
			msg = fmt.Sprintf("session %q not found", opts.Session)
		}
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, msg)
	}

	l, runs, err := loadSession(ctx, st, sess)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}

	result := ShowResult{
		Session: sess,
		Years:   l.Years(),
		Table:   l.Table(forecast.TableQuery{Statement: ir.Statement(opts.Statement), Years: l.Years()}),
		Runs:    runs,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	styled := isTerminal(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "%s %s (seq %d)\n", style(headerStyle, "Session", styled), sess.ID, sess.Seq)
	for _, r := range runs {
		formatter.VerboseLog("run %d: years=%d base_profit=%s cash=%s ruleset=%s",
			r.Seq, r.Years, r.BaseProfit, r.Cash, r.RuleSetHash)
	}
	return renderTable(formatter.Writer, result.Table, styled)
}

// loadSession restores a stored session as a read-only ledger.
func loadSession(ctx context.Context, st *store.Store, sess store.Session) (*forecast.Ledger, []store.Run, error) {
	accounts, err := st.ReadAccounts(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	cells, err := st.ReadCells(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	runs, err := st.ReadRuns(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	l := forecast.Restore(forecast.Restored{
		ID:         sess.ID,
		Accounts:   accounts,
		Cells:      cells,
		FirstYear:  sess.FirstYear,
		LastActual: sess.LastActual,
		LastYear:   sess.LastYear,
	}, forecast.WithLogger(slog.Default()))
	return l, runs, nil
}

func listSessions(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	sessions, err := st.ReadSessions(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	if formatter.Format == "json" {
		return formatter.Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions stored")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(formatter.Writer, "%d  %s  FY%d-FY%d (actuals to FY%d)\n",
			s.Seq, s.ID, s.FirstYear, s.LastYear, s.LastActual)
	}
	return nil
}
