package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fam/internal/ir"
)

func TestRunWithGolden(t *testing.T) {
	result, err := RunWithGolden(t, loadFixture(t, "growth"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTableSnapshot_Canonical(t *testing.T) {
	snap := TableSnapshot{
		ScenarioName: "s",
		Session:      "sess",
		Table: ir.Table{
			Rows:    []ir.TableRow{{AccountID: "acc:Land", Name: "Land", ParentID: "acc:PPE"}},
			Columns: []string{"FY:2000"},
			Data:    [][]float64{{-5}},
		},
	}

	data, err := ir.MarshalCanonical(snap.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"columns":["FY:2000"],"rows":[{"account":"Land","id":"acc:Land","parent_id":"acc:PPE","values":[-5]}],"scenario":"s","session":"sess"}`,
		string(data))
}

func TestTableSnapshot_Deterministic(t *testing.T) {
	s := loadFixture(t, "depreciation")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a := TableSnapshot{ScenarioName: s.Name, Session: first.Session, Table: first.Table}
	b := TableSnapshot{ScenarioName: s.Name, Session: second.Session, Table: second.Table}
	ja, err := ir.MarshalCanonical(a.toCanonicalMap())
	require.NoError(t, err)
	jb, err := ir.MarshalCanonical(b.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}
