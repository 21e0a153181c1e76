package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a forecast conformance scenario.
// A scenario loads CUE specs, runs a sequence of ledger steps and asserts
// on the settled table and the persisted session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE spec files unified into one model.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Steps run in order against one ledger.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger and store.
	// Supported types: cell, computed_years, rows, final_state
	Assertions []Assertion `yaml:"assertions"`

	// SessionID is an optional fixed session ID.
	// If empty, defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`
}

// Step is one ledger operation.
type Step struct {
	// Action is "compute", "set_rule" or "clear_balance_changes".
	Action string `yaml:"action"`

	// Years, BaseProfit and Cash override the spec's compute section
	// (used by compute).
	Years      int    `yaml:"years,omitempty"`
	BaseProfit string `yaml:"base_profit,omitempty"`
	Cash       string `yaml:"cash,omitempty"`

	// Account and Rule replace one account's rule (used by set_rule).
	// Rule has the same shape as a CUE rules entry.
	Account string         `yaml:"account,omitempty"`
	Rule    map[string]any `yaml:"rule,omitempty"`

	// Expect specifies the expected failure. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step failure.
type ExpectClause struct {
	// Error is the expected error code (e.g., "BUILD_CYCLE").
	Error string `yaml:"error"`
}

// Assertion validates ledger or store state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "cell": Check one displayed value
	// - "computed_years": Check the years settled by the last compute
	// - "rows": Check table row order for a statement
	// - "final_state": Query a store table and verify expected values
	Type string `yaml:"type"`

	// Account and Year locate the cell; Value is its displayed (rounded)
	// value (used by cell).
	Account string   `yaml:"account,omitempty"`
	Year    int      `yaml:"year,omitempty"`
	Value   *float64 `yaml:"value,omitempty"`

	// Years is the expected year list (used by computed_years).
	Years []int `yaml:"years,omitempty"`

	// Statement filters rows; Accounts is the expected order (used by rows).
	Statement string   `yaml:"statement,omitempty"`
	Accounts  []string `yaml:"accounts,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionCompute             = "compute"
	ActionSetRule             = "set_rule"
	ActionClearBalanceChanges = "clear_balance_changes"
)

// Assertion type constants.
const (
	AssertCell          = "cell"
	AssertComputedYears = "computed_years"
	AssertRows          = "rows"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec paths
// relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML with strict field checking. Spec
// paths are left as written and not validated.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionCompute:
		if s.Years < 0 {
			return fmt.Errorf("steps[%d]: years must be non-negative", index)
		}
	case ActionSetRule:
		if s.Account == "" {
			return fmt.Errorf("steps[%d]: account is required for set_rule", index)
		}
		if len(s.Rule) == 0 {
			return fmt.Errorf("steps[%d]: rule is required for set_rule", index)
		}
	case ActionClearBalanceChanges:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}

	if s.Expect != nil && s.Expect.Error == "" {
		return fmt.Errorf("steps[%d].expect: error is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCell:
		if a.Account == "" || a.Year == 0 {
			return fmt.Errorf("assertions[%d]: account and year are required for cell", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for cell", index)
		}
	case AssertComputedYears:
		if a.Years == nil {
			return fmt.Errorf("assertions[%d]: years is required for computed_years (use [] for none)", index)
		}
	case AssertRows:
		if len(a.Accounts) == 0 {
			return fmt.Errorf("assertions[%d]: accounts list is required for rows", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
