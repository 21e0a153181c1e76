package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Cell is one settled value with its address spelled out.
type Cell struct {
	Key       string    `json:"key"`
	Statement Statement `json:"statement"`
	Year      int       `json:"year"`
	AccountID string    `json:"account_id"`
	Value     float64   `json:"value"`
}

// TableRow identifies one row of a projected table.
type TableRow struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	ParentID  string `json:"parent_id,omitempty"`
}

// Table is a statement projected onto requested fiscal years. Data[i][j] is
// the value of Rows[i] at Columns[j], rounded to an integral value. A cell
// whose evaluation overflowed or had no defined result holds NaN or an
// infinity and is displayed with AmountMarker.
type Table struct {
	Statement Statement   `json:"statement"`
	Rows      []TableRow  `json:"rows"`
	Columns   []string    `json:"columns"`
	Data      [][]float64 `json:"data"`
}

// Value returns the cell for account name at column label.
func (t Table) Value(name, column string) (float64, bool) {
	col := slices.Index(t.Columns, column)
	if col < 0 {
		return 0, false
	}
	for i, r := range t.Rows {
		if r.Name == name {
			return t.Data[i][col], true
		}
	}
	return 0, false
}

// AmountMarker returns the text shown in place of a non-finite value, and
// false for finite ones.
func AmountMarker(v float64) (string, bool) {
	switch {
	case math.IsNaN(v):
		return "NaN", true
	case math.IsInf(v, 1):
		return "Infinity", true
	case math.IsInf(v, -1):
		return "-Infinity", true
	}
	return "", false
}

func parseAmountMarker(s string) (float64, bool) {
	switch s {
	case "NaN":
		return math.NaN(), true
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	return 0, false
}

type tableJSON Table

// MarshalJSON writes non-finite cells as their marker strings, which
// encoding/json cannot do for float64.
func (t Table) MarshalJSON() ([]byte, error) {
	data := make([][]any, len(t.Data))
	for i, row := range t.Data {
		data[i] = make([]any, len(row))
		for j, v := range row {
			if m, ok := AmountMarker(v); ok {
				data[i][j] = m
			} else {
				data[i][j] = v
			}
		}
	}
	return json.Marshal(struct {
		tableJSON
		Data [][]any `json:"data"`
	}{tableJSON(t), data})
}

// UnmarshalJSON accepts numbers and the strings written by MarshalJSON.
func (t *Table) UnmarshalJSON(b []byte) error {
	aux := struct {
		*tableJSON
		Data [][]json.RawMessage `json:"data"`
	}{tableJSON: (*tableJSON)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.Data = make([][]float64, len(aux.Data))
	for i, row := range aux.Data {
		t.Data[i] = make([]float64, len(row))
		for j, raw := range row {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				v, ok := parseAmountMarker(s)
				if !ok {
					return fmt.Errorf("table data[%d][%d]: unknown marker %q", i, j, s)
				}
				t.Data[i][j] = v
				continue
			}
			if err := json.Unmarshal(raw, &t.Data[i][j]); err != nil {
				return fmt.Errorf("table data[%d][%d]: %w", i, j, err)
			}
		}
	}
	return nil
}
