package harness

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/fam/internal/forecast"
	"github.com/roach88/fam/internal/ir"
	"github.com/roach88/fam/internal/store"
)

// sqlIdent is the only shape of table or column name a final_state
// assertion may interpolate into SQL.
var sqlIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError reports a failed assertion with the steps that led to it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Steps    []string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n  Expected: %s\n  Actual: %s\n", e.Type, e.Expected, e.Actual)
	if len(e.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for i, step := range e.Steps {
			fmt.Fprintf(&b, "  [%d] %s\n", i+1, step)
		}
	}
	return b.String()
}

// describeSteps renders step results as "compute -> run 1" or
// "compute -> BUILD_CYCLE".
func describeSteps(steps []StepResult) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Action
		if s.Error != "" {
			out[i] += " -> " + s.Error
		} else if s.Run > 0 {
			out[i] += fmt.Sprintf(" -> run %d", s.Run)
		}
	}
	return out
}

// checker builds AssertionErrors for one assertion type.
type checker struct {
	kind  string
	steps []string
}

func (c checker) fail(expected, actual string) error {
	return &AssertionError{Type: c.kind, Expected: expected, Actual: actual, Steps: c.steps}
}

func (c checker) equalStrings(expected, actual []string) error {
	if slices.Equal(expected, actual) {
		return nil
	}
	return c.fail(fmt.Sprint(expected), fmt.Sprint(actual))
}

func assertCell(table ir.Table, a Assertion, steps []string) error {
	c := checker{kind: AssertCell, steps: steps}
	name, column := ir.NormalizeName(a.Account), ir.PeriodKey(a.Year)
	want := fmt.Sprintf("%s at %s = %s", name, column, amountText(*a.Value))

	got, ok := table.Value(name, column)
	switch {
	case !ok:
		return c.fail(want, fmt.Sprintf("no cell (columns %v)", table.Columns))
	case got != *a.Value:
		return c.fail(want, fmt.Sprintf("%s at %s = %s", name, column, amountText(got)))
	}
	return nil
}

func amountText(v float64) string {
	if m, ok := ir.AmountMarker(v); ok {
		return m
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func assertComputedYears(l *forecast.Ledger, a Assertion, steps []string) error {
	c := checker{kind: AssertComputedYears, steps: steps}
	if got := l.ComputedYears(); !slices.Equal(got, a.Years) {
		return c.fail(fmt.Sprint(a.Years), fmt.Sprint(got))
	}
	return nil
}

// assertRows compares row names in display order. The table is taken with
// no year columns; only its rows matter.
func assertRows(l *forecast.Ledger, a Assertion, steps []string) error {
	table := l.Table(forecast.TableQuery{Statement: ir.Statement(a.Statement), Years: []int{}})
	var got, want []string
	for _, row := range table.Rows {
		got = append(got, row.Name)
	}
	for _, name := range a.Accounts {
		want = append(want, ir.NormalizeName(name))
	}
	return checker{kind: AssertRows, steps: steps}.equalStrings(want, got)
}

// assertFinalState selects the single row of a.Table matching a.Where and
// checks the fields named in a.Expect. Unnamed fields are ignored.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion, steps []string) error {
	c := checker{kind: AssertFinalState, steps: steps}
	if !sqlIdent.MatchString(a.Table) {
		return fmt.Errorf("invalid table name %q: must match %s", a.Table, sqlIdent)
	}
	where, args, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}

	query := "SELECT * FROM " + a.Table
	if where != "" {
		query += " WHERE " + where
	}
	row, columns, matched, err := selectRow(ctx, st, query, args)
	if err != nil {
		return c.fail("query of "+a.Table, err.Error())
	}
	switch {
	case matched == 0:
		return c.fail(fmt.Sprintf("row in %s where %s", a.Table, formatWhereClause(a.Where)), "row not found")
	case matched > 1:
		return c.fail(fmt.Sprintf("exactly one row in %s where %s", a.Table, formatWhereClause(a.Where)),
			"multiple rows matched (assertion is ambiguous)")
	}

	for _, key := range slices.Sorted(maps.Keys(a.Expect)) {
		want := a.Expect[key]
		got, ok := row[key]
		if !ok {
			return c.fail(fmt.Sprintf("field %q", key), fmt.Sprintf("field %q not present in columns %v", key, columns))
		}
		if !stateValuesEqual(want, got) {
			return c.fail(fmt.Sprintf("field %q = %v (%T)", key, want, want), fmt.Sprintf("field %q = %v (%T)", key, got, got))
		}
	}
	return nil
}

// selectRow returns the first row of query keyed by column, and how many
// rows matched, counting no further than two.
func selectRow(ctx context.Context, st *store.Store, query string, args []any) (map[string]any, []string, int, error) {
	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, 0, err
	}

	var first map[string]any
	matched := 0
	for matched < 2 && rows.Next() {
		matched++
		if first != nil {
			continue
		}
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, 0, err
		}
		first = make(map[string]any, len(columns))
		for i, col := range columns {
			first[col] = values[i]
		}
	}
	return first, columns, matched, rows.Err()
}

// buildWhereClause turns where into "a = ? AND b = ?" with keys sorted.
// Keys must be plain identifiers.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	var (
		terms []string
		args  []any
	)
	for _, key := range slices.Sorted(maps.Keys(where)) {
		if !sqlIdent.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match %s", key, sqlIdent)
		}
		terms = append(terms, key+" = ?")
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(terms, " AND "), args, nil
}

// toSQLValue passes YAML numbers and bools through and NFC-normalizes
// strings, the form account names are stored in.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string:
		return ir.NormalizeName(val)
	case int, int64, float64, bool:
		return val
	}
	return fmt.Sprint(v)
}

func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	var parts []string
	for _, key := range slices.Sorted(maps.Keys(where)) {
		parts = append(parts, fmt.Sprintf("%s=%v", key, where[key]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a YAML value with a scanned SQLite value.
// Numbers compare by value whether stored as INTEGER or REAL; text may
// scan as []byte; booleans are stored as 0 or 1.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if want, ok := toFloat(expected); ok {
		got, ok := toFloat(actual)
		return ok && want == got
	}

	switch want := expected.(type) {
	case string:
		want = ir.NormalizeName(want)
		switch got := actual.(type) {
		case string:
			return want == got
		case []byte:
			return want == string(got)
		}
		return false
	case bool:
		switch got := actual.(type) {
		case bool:
			return want == got
		case int64:
			return want == (got != 0)
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// AssertionContext carries what the ledger and store assertions read.
type AssertionContext struct {
	Ledger *forecast.Ledger
	Store  *store.Store
	Ctx    context.Context
}

// EvaluateAssertions runs every assertion and returns one message per
// failure. actx may be nil, in which case only cell assertions can pass.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	steps := describeSteps(result.Steps)
	var failures []string
	for i, a := range assertions {
		if err := evaluate(i, result, a, actx, steps); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(i int, result *Result, a Assertion, actx *AssertionContext, steps []string) error {
	switch a.Type {
	case AssertCell:
		return assertCell(result.Table, a, steps)
	case AssertComputedYears, AssertRows:
		if actx == nil || actx.Ledger == nil {
			return fmt.Errorf("assertion[%d]: %s requires a ledger", i, a.Type)
		}
		if a.Type == AssertRows {
			return assertRows(actx.Ledger, a, steps)
		}
		return assertComputedYears(actx.Ledger, a, steps)
	case AssertFinalState:
		if actx == nil || actx.Store == nil {
			return fmt.Errorf("assertion[%d]: final_state requires database context", i)
		}
		ctx := actx.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		return assertFinalState(ctx, actx.Store, a, steps)
	}
	return fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
}
