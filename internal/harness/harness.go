package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/fam/internal/compiler"
	"github.com/roach88/fam/internal/forecast"
	"github.com/roach88/fam/internal/ir"
	"github.com/roach88/fam/internal/store"
	"github.com/roach88/fam/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against one ledger with a fixed session ID and
// persists every successful compute to its store.
type Harness struct {
	store  *store.Store
	ledger *forecast.Ledger
	spec   *compiler.Spec
	cue    *cue.Context
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load, unify and compile the CUE specs
// 3. Build the ledger from the spec with a fixed session ID
// 4. Execute steps, checking each against its expect clause
// 5. Evaluate assertions and return the result
//
// A returned error means the scenario could not run; step and assertion
// failures are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cueCtx := cuecontext.New()
	spec, err := loadSpecs(cueCtx, scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	ledger, err := forecast.FromSpec(spec,
		forecast.WithLogger(logger),
		forecast.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.SessionID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger: %w", err)
	}

	h := &Harness{
		store:  st,
		ledger: ledger,
		spec:   spec,
		cue:    cueCtx,
		logger: logger,
	}

	ctx := context.Background()
	result := NewResult()
	result.Session = ledger.ID()

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	result.Table = ledger.Table(forecast.TableQuery{Years: ledger.Years()})

	actx := &AssertionContext{
		Ledger: ledger,
		Store:  st,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// loadSpecs compiles each file and unifies them into one model.
func loadSpecs(ctx *cue.Context, paths []string) (*compiler.Spec, error) {
	v := ctx.CompileString("{}")
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		f := ctx.CompileBytes(data, cue.Filename(path))
		if err := f.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		v = v.Unify(f)
	}
	return compiler.CompileSpec(v)
}

// executeSteps runs all steps in order.
//
// A step that fails with the expected code, or succeeds without an expect
// clause, passes. Anything else is recorded as a result error and the next
// step still runs.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		var (
			run     int64
			stepErr error
		)

		switch step.Action {
		case ActionCompute:
			cfg := h.computeConfig(step)
			stepErr = h.ledger.Compute(forecast.OptionsFromConfig(cfg))
			if stepErr == nil {
				var err error
				if run, err = h.persist(ctx, cfg); err != nil {
					return fmt.Errorf("step %d: %w", i, err)
				}
			}
		case ActionSetRule:
			stepErr = h.setRule(i, step)
		case ActionClearBalanceChanges:
			h.ledger.SetBalanceChange(nil)
		default:
			return fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}

		code := errorCode(stepErr)
		result.AddStep(step.Action, code, run)

		switch {
		case step.Expect == nil && stepErr != nil:
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", i, step.Action, stepErr))
		case step.Expect != nil && stepErr == nil:
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", i, step.Action, step.Expect.Error))
		case step.Expect != nil && code != step.Expect.Error:
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s: %v", i, step.Action, step.Expect.Error, code, stepErr))
		}

		h.logger.Info("step completed",
			"step", i,
			"action", step.Action,
			"error", code,
			"run", run,
		)
	}
	return nil
}

// errorCode names err for expect clauses: the ledger error code, COMPILE for
// rule compilation failures, ERROR otherwise.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return "COMPILE"
	}
	return "ERROR"
}

// computeConfig layers the step's overrides on the spec's compute section.
func (h *Harness) computeConfig(step Step) ir.ComputeConfig {
	cfg := h.spec.Compute
	if step.Years > 0 {
		cfg.Years = step.Years
	}
	if step.BaseProfit != "" {
		cfg.BaseProfitAccount = step.BaseProfit
	}
	if step.Cash != "" {
		cfg.CashAccount = step.Cash
	}
	if cfg.CashAccount == "" {
		cfg.CashAccount = ir.CashAccount
	}
	return cfg
}

// setRule compiles the step's rule through the CUE path used for spec
// files and installs it on the ledger.
func (h *Harness) setRule(index int, step Step) error {
	v := h.cue.Encode(step.Rule)
	rule, err := compiler.CompileRule(v, fmt.Sprintf("steps[%d].rule", index))
	if err != nil {
		return err
	}
	h.ledger.UpdateRule(ir.NormalizeName(step.Account), rule)
	return nil
}

// persist writes the ledger's session and the run that produced it.
func (h *Harness) persist(ctx context.Context, cfg ir.ComputeConfig) (int64, error) {
	actual := h.ledger.ActualYears()
	sess := store.Session{
		ID:         h.ledger.ID(),
		FirstYear:  actual[0],
		LastActual: actual[len(actual)-1],
		LastYear:   h.ledger.LastYear(),
	}
	if _, err := h.store.WriteSession(ctx, sess, h.ledger.Accounts(), h.ledger.Cells()); err != nil {
		return 0, fmt.Errorf("write session: %w", err)
	}
	run, err := h.store.WriteRun(ctx, sess.ID, h.ledger.Rules(), h.ledger.Instructions(), cfg)
	if err != nil {
		return 0, fmt.Errorf("write run: %w", err)
	}
	return run.Seq, nil
}
