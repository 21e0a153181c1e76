package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fam/internal/ir"
)

// TableSnapshot captures the final table of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TableSnapshot struct {
	ScenarioName string   `json:"scenario"`
	Session      string   `json:"session"`
	Table        ir.Table `json:"table"`
}

// toCanonicalMap converts a TableSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, slices and maps.
func (s *TableSnapshot) toCanonicalMap() map[string]any {
	rows := make([]any, len(s.Table.Rows))
	for i, row := range s.Table.Rows {
		values := make([]any, len(s.Table.Data[i]))
		for j, v := range s.Table.Data[i] {
			if m, ok := ir.AmountMarker(v); ok {
				values[j] = m
			} else {
				values[j] = v
			}
		}
		rowMap := map[string]any{
			"account": row.Name,
			"id":      row.AccountID,
			"values":  values,
		}
		if row.ParentID != "" {
			rowMap["parent_id"] = row.ParentID
		}
		rows[i] = rowMap
	}

	return map[string]any{
		"scenario": s.ScenarioName,
		"session":  s.Session,
		"columns":  s.Table.Columns,
		"rows":     rows,
	}
}

// RunWithGolden executes a scenario and compares the final table against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the table doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's table against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TableSnapshot{
		ScenarioName: scenarioName,
		Session:      result.Session,
		Table:        result.Table,
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
