package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fam/internal/ir"
)

func loadFixture(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Fixtures(t *testing.T) {
	for _, name := range []string{"growth", "cycle_recovery", "step_errors", "depreciation", "clear_balance_changes"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadFixture(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_StepResults(t *testing.T) {
	result, err := Run(loadFixture(t, "cycle_recovery"))
	require.NoError(t, err)

	assert.Equal(t, "cycle-0001", result.Session)
	assert.Equal(t, []StepResult{
		{Action: ActionCompute, Run: 1},
		{Action: ActionSetRule},
		{Action: ActionCompute, Error: string(ir.CodeBuildCycle)},
		{Action: ActionSetRule},
		{Action: ActionCompute, Run: 2},
	}, result.Steps)
}

func TestRun_RepeatedComputeReusesRun(t *testing.T) {
	s := loadFixture(t, "growth")
	s.Steps = []Step{{Action: ActionCompute}, {Action: ActionCompute}}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(1), result.Steps[0].Run)
	assert.Equal(t, int64(1), result.Steps[1].Run)
}

func TestRun_DefaultSession(t *testing.T) {
	s := loadFixture(t, "growth")
	s.SessionID = ""
	s.Assertions = []Assertion{{Type: AssertComputedYears, Years: []int{2001, 2002}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "test-session-default", result.Session)
}

func TestRun_Table(t *testing.T) {
	result, err := Run(loadFixture(t, "growth"))
	require.NoError(t, err)

	assert.Equal(t, []string{"FY:2000", "FY:2001", "FY:2002"}, result.Table.Columns)
	v, ok := result.Table.Value("COGS", "FY:2002")
	require.True(t, ok)
	assert.Equal(t, float64(726), v)
}

func TestRun_UnexpectedStepError(t *testing.T) {
	s := loadFixture(t, "growth")
	s.Steps = []Step{{Action: ActionCompute, Cash: "Bank"}}
	s.Assertions = []Assertion{{Type: AssertComputedYears, Years: []int{}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 0 (compute): unexpected error")
}

func TestRun_ExpectedErrorMismatch(t *testing.T) {
	s := loadFixture(t, "growth")
	s.Steps = []Step{
		{Action: ActionCompute, Expect: &ExpectClause{Error: "BUILD_CYCLE"}},
		{Action: ActionCompute, Cash: "Bank", Expect: &ExpectClause{Error: "BUILD_CYCLE"}},
	}
	s.Assertions = []Assertion{{Type: AssertComputedYears, Years: []int{2001, 2002}}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected error BUILD_CYCLE, got success")
	assert.Contains(t, result.Errors[1], "expected error BUILD_CYCLE, got CASH_ACCOUNT")
}

func TestRun_FailedAssertion(t *testing.T) {
	s := loadFixture(t, "growth")
	wrong := float64(1)
	s.Assertions = []Assertion{{Type: AssertCell, Account: "Sales", Year: 2001, Value: &wrong}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: cell")
	assert.Contains(t, result.Errors[0], "Sales at FY:2001 = 1100")
	assert.Contains(t, result.Errors[0], "[1] compute -> run 1")
}

func TestRun_SpecCompileError(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(spec, []byte("package fam\naccounts: Cash: statement: \"XX\"\n"), 0o644))

	_, err := Run(&Scenario{
		Name:       "bad",
		Specs:      []string{spec},
		Steps:      []Step{{Action: ActionCompute}},
		Assertions: []Assertion{{Type: AssertComputedYears, Years: []int{}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load specs")
}

func TestRun_SpecsUnify(t *testing.T) {
	s := loadFixture(t, "depreciation")
	s.Specs = s.Specs[:1]
	s.Assertions = []Assertion{
		{Type: AssertCell, Account: "PPE", Year: 2002, Value: ptr(1000)},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func ptr(v float64) *float64 { return &v }
