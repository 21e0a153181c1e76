package harness

import "github.com/roach88/fam/internal/ir"

// StepResult records one executed step.
type StepResult struct {
	Action string `json:"action"`

	// Error is the error code the step failed with, empty on success.
	Error string `json:"error,omitempty"`

	// Run is the store run seq written after a successful compute.
	Run int64 `json:"run,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step matched its expectation and all assertions held.
	Pass bool `json:"pass"`

	// Steps contains one entry per executed step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Session is the ledger's session ID.
	Session string `json:"session"`

	// Table is the final projection over the session's years, all statements.
	Table ir.Table `json:"table"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step outcome.
func (r *Result) AddStep(action, code string, run int64) {
	r.Steps = append(r.Steps, StepResult{Action: action, Error: code, Run: run})
}
