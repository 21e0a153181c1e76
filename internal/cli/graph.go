package cli

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fam/internal/forecast"
	"github.com/roach88/fam/internal/graph"
	"github.com/roach88/fam/internal/ir"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Years  int
	Check  bool
	Output string
}

// GraphCheck is the result of cross-checking the two evaluators.
type GraphCheck struct {
	Nodes      int        `json:"nodes"`
	Roots      int        `json:"roots"`
	Consistent bool       `json:"consistent"`
	Problems   []CLIError `json:"problems,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <specs-dir>",
		Short: "Export or check the expression graphs of a forecast",
		Long: `Compute a forecast and export the expression graphs of every forecast
year in Graphviz DOT format.

With --check the graphs are instead validated (leaf/combinator shape,
acyclicity) and every root is evaluated by both the recursive and the
topological evaluator; any disagreement is reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Years, "years", envInt(EnvYears, 0), "forecast years (default from spec, else 5) [$"+EnvYears+"]")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "validate graphs and compare evaluators")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write DOT to this file instead of stdout")

	return cmd
}

func runGraph(opts *GraphOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return formatter.loadFailure(err)
	}
	spec := loadResult.Spec

	l, err := forecast.FromSpec(spec, forecast.WithLogger(slog.Default()))
	if err != nil {
		return outputForecastFailure(formatter, err)
	}
	cfg := resolveCompute(spec.Compute, &RunOptions{Years: opts.Years})
	if err := l.Compute(forecast.OptionsFromConfig(cfg)); err != nil {
		return outputForecastFailure(formatter, err)
	}

	if opts.Check {
		check := CheckGraph(l.Arena(), l.Roots())
		if !check.Consistent {
			_ = formatter.Errors("Graph check failed", check.Problems)
			return NewExitError(ExitFailure, fmt.Sprintf("graph check failed with %d problem(s)", len(check.Problems)))
		}
		if formatter.Format == "json" {
			return formatter.Success(check)
		}
		fmt.Fprintf(formatter.Writer, "%s %d node(s), %d root(s): evaluators agree\n",
			style(successStyle, "✓", isTerminal(formatter.Writer)), check.Nodes, check.Roots)
		return nil
	}

	dot := l.DOT()
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(dot), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing DOT file: %v", err))
		}
		formatter.VerboseLog("Wrote DOT to %s", opts.Output)
		return nil
	}
	if formatter.Format == "json" {
		return formatter.Success(map[string]string{"dot": dot})
	}
	_, err = fmt.Fprint(formatter.Writer, dot)
	return err
}

// CheckGraph validates the arena reachable from roots and evaluates every
// root with both evaluators.
func CheckGraph(a *graph.Arena, roots []ir.NodeID) GraphCheck {
	check := GraphCheck{Nodes: a.Len(), Roots: len(roots)}

	for _, err := range graph.Validate(a, roots) {
		check.Problems = append(check.Problems, CLIError{Code: MapForecastErrorCode(err), Message: err.Error()})
	}

	topo, err := graph.EvalTopo(a, roots)
	if err != nil {
		check.Problems = append(check.Problems, CLIError{Code: MapForecastErrorCode(err), Message: err.Error()})
	}
	memo := make(map[ir.NodeID]float64)
	for _, id := range roots {
		rec, err := graph.EvalRecursive(a, id, memo)
		if err != nil {
			check.Problems = append(check.Problems, CLIError{Code: MapForecastErrorCode(err), Message: err.Error()})
			continue
		}
		if topo == nil {
			continue
		}
		if t, ok := topo[id]; !ok || !sameValue(t, rec) {
			check.Problems = append(check.Problems, CLIError{
				Code:    ErrCodeEvalConsistency,
				Message: fmt.Sprintf("node %s: recursive %g, topological %g", id, rec, t),
			})
		}
	}

	check.Consistent = len(check.Problems) == 0
	return check
}

func sameValue(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
