package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/fam/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testAccounts returns a small catalog in display order.
func testAccounts() []ir.Account {
	return []ir.Account{
		ir.NewAccount("Sales"),
		ir.NewAccount("COGS"),
		{ID: "CASH", Name: "Cash", Statement: ir.StatementBS},
	}
}

// testCell builds a cell for account with its derived key.
func testCell(statement ir.Statement, year int, accountID string, value float64) ir.Cell {
	return ir.Cell{
		Key:       ir.CellKey(statement, ir.PeriodKey(year), accountID),
		Statement: statement,
		Year:      year,
		AccountID: accountID,
		Value:     value,
	}
}
