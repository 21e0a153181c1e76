package cli

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fam/internal/ir"
)

func TestRenderTable_Plain(t *testing.T) {
	table := ir.Table{
		Statement: ir.StatementPL,
		Rows:      []ir.TableRow{{Name: "Sales"}, {Name: "OperatingIncome"}},
		Columns:   []string{"FY:2000", "FY:2001"},
		Data:      [][]float64{{1000, 1100}, {-5, 400}},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, renderTable(buf, table, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Statement PL", lines[0])
	assert.Equal(t, "Account          FY:2000  FY:2001", lines[1])
	assert.Equal(t, "Sales               1000     1100", lines[2])
	assert.Equal(t, "OperatingIncome       -5      400", lines[3])
}

func TestRenderTable_WideNames(t *testing.T) {
	wide := "\u58f2\u4e0a\u9ad8" // three double-width runes, six cells
	table := ir.Table{
		Rows:    []ir.TableRow{{Name: wide}, {Name: "Cash"}},
		Columns: []string{"FY:2000"},
		Data:    [][]float64{{1}, {22}},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, renderTable(buf, table, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "All statements", lines[0])
	assert.Equal(t, "Account  FY:2000", lines[1])
	assert.Equal(t, wide+"         1", lines[2])
	assert.Equal(t, "Cash          22", lines[3])
}

func TestRenderTable_NonFiniteAndLarge(t *testing.T) {
	table := ir.Table{
		Rows:    []ir.TableRow{{Name: "Sales"}, {Name: "Other"}},
		Columns: []string{"FY:2001"},
		Data:    [][]float64{{math.Inf(1)}, {math.NaN()}},
	}

	buf := &bytes.Buffer{}
	require.NoError(t, renderTable(buf, table, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Sales    Infinity", lines[2])
	assert.Equal(t, "Other         NaN", lines[3])
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10000000000000000000", formatAmount(1e19))
	assert.Equal(t, "-5", formatAmount(-5))
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "-Infinity", formatAmount(math.Inf(-1)))
}

func TestIsTerminal_Buffer(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}
