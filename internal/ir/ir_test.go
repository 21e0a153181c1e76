package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodIsPrevious(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		want   bool
	}{
		{"actual basis", Period{Basis: BasisActual}, true},
		{"negative offset", Period{Basis: BasisForecast, Offset: -1}, true},
		{"forecast", Period{Basis: BasisForecast}, false},
		{"unset", Period{}, false},
		{"positive offset", Period{Offset: 1}, false},
		{"prev helper", PreviousPeriod(), true},
		{"curr helper", CurrentPeriod(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.period.IsPrevious())
		})
	}
}

func TestPeriodKeyRoundTrip(t *testing.T) {
	assert.Equal(t, "FY:2001", PeriodKey(2001))

	year, err := ParsePeriodKey("FY:2001")
	require.NoError(t, err)
	assert.Equal(t, 2001, year)

	_, err = ParsePeriodKey("2001")
	assert.Error(t, err)
	_, err = ParsePeriodKey("FY:abc")
	assert.Error(t, err)
}

func TestCellKey(t *testing.T) {
	k := CellKey(StatementPL, PeriodKey(2000), "acc:Sales")
	assert.Regexp(t, `^cell:[0-9a-f]{16}$`, k)
	assert.Equal(t, k, CellKey(StatementPL, PeriodKey(2000), "acc:Sales"))

	// Every component participates and order matters.
	assert.NotEqual(t, k, CellKey(StatementBS, PeriodKey(2000), "acc:Sales"))
	assert.NotEqual(t, k, CellKey(StatementPL, PeriodKey(2001), "acc:Sales"))
	assert.NotEqual(t, k, CellKey(StatementPL, PeriodKey(2000), "acc:COGS"))
}

func TestCellKey_KnownVector(t *testing.T) {
	// FNV-1a 64 of the empty string is the offset basis; "||" exercises the
	// separator layout.
	assert.Equal(t, "cell:cbf29ce484222325", fnvHexForTest(""))
	assert.Equal(t, CellKey("", "", ""), fnvHexForTest("||"))
}

func fnvHexForTest(s string) string {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	var h uint64 = offset
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return fmt.Sprintf("cell:%016x", h)
}

func TestAccountID(t *testing.T) {
	assert.Equal(t, "acc:Sales", AccountID("Sales"))
	assert.Equal(t, "acc:Net%20Sales", AccountID("Net Sales"))
	assert.Equal(t, "acc:%E7%8F%BE%E9%87%91", AccountID("\u73fe\u91d1"))

	acc := NewAccount("Sales")
	assert.Equal(t, StatementPL, acc.Statement)
	assert.Equal(t, "Sales", acc.Name)
}

func TestRuleSetOrder(t *testing.T) {
	rs := NewRuleSet()
	rs.Set("B", FixedValue{Value: 1})
	rs.Set("A", FixedValue{Value: 2})
	rs.Set("B", FixedValue{Value: 3})

	assert.Equal(t, []string{"B", "A"}, rs.Names())
	assert.Equal(t, 2, rs.Len())
	r, ok := rs.Get("B")
	require.True(t, ok)
	assert.Equal(t, FixedValue{Value: 3}, r)

	clone := rs.Clone()
	clone.Set("C", ChildrenSum{})
	assert.False(t, rs.Has("C"))
	assert.True(t, clone.Has("C"))

	var nilSet *RuleSet
	assert.Equal(t, 0, nilSet.Len())
	assert.Empty(t, nilSet.Names())
}

// kindRecorder records which visitor method ran.
type kindRecorder struct{ got RuleKind }

func (k *kindRecorder) VisitInput(Input) error                 { k.got = KindInput; return nil }
func (k *kindRecorder) VisitFixedValue(FixedValue) error       { k.got = KindFixedValue; return nil }
func (k *kindRecorder) VisitReference(Reference) error         { k.got = KindReference; return nil }
func (k *kindRecorder) VisitGrowthRate(GrowthRate) error       { k.got = KindGrowthRate; return nil }
func (k *kindRecorder) VisitPercentage(Percentage) error       { k.got = KindPercentage; return nil }
func (k *kindRecorder) VisitProportionate(Proportionate) error { k.got = KindProportionate; return nil }
func (k *kindRecorder) VisitChildrenSum(ChildrenSum) error     { k.got = KindChildrenSum; return nil }
func (k *kindRecorder) VisitCalculation(Calculation) error     { k.got = KindCalculation; return nil }

func TestRuleAcceptDispatch(t *testing.T) {
	rules := []Rule{
		Input{}, FixedValue{}, Reference{}, GrowthRate{}, Percentage{},
		Proportionate{}, ChildrenSum{}, Calculation{},
	}
	for _, r := range rules {
		t.Run(string(r.Kind()), func(t *testing.T) {
			rec := &kindRecorder{}
			require.NoError(t, r.Accept(rec))
			assert.Equal(t, r.Kind(), rec.got)
		})
	}
}

func TestRuleReferences(t *testing.T) {
	base := Prev("Sales")
	assert.Nil(t, FixedValue{Value: 1}.References())
	assert.Equal(t, []Ref{base}, Proportionate{Base: &base}.References())
	assert.Nil(t, Proportionate{}.References())
	assert.Equal(t, []Ref{Curr("A"), Curr("B").Negate()},
		Calculation{Refs: []Ref{Curr("A"), Curr("B").Negate()}}.References())
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("compute FY2001: %w", NewBuildCycleError("A", 2001))

	assert.True(t, errors.Is(err, ErrBuildCycle))
	assert.False(t, errors.Is(err, ErrMissingRule))
	assert.True(t, IsBuildCycle(err))
	assert.Equal(t, CodeBuildCycle, CodeOf(err))
	assert.Contains(t, err.Error(), "account=A, year=2001")

	joined := errors.Join(
		NewUnknownReferenceError("OperatingIncome", "Nope"),
		NewRequiredFieldError("Sales", "refs"),
	)
	assert.True(t, errors.Is(joined, ErrUnknownReference))
	assert.True(t, errors.Is(joined, ErrRequiredField))
	assert.True(t, IsValidation(joined))
	assert.False(t, IsValidation(NewCashAccountError("")))
	assert.Equal(t, "CASH_ACCOUNT: cash account is required", NewCashAccountError("").Error())
}

func TestTableValue(t *testing.T) {
	tbl := Table{
		Rows:    []TableRow{{AccountID: "acc:Sales", Name: "Sales"}},
		Columns: []string{"FY:2000", "FY:2001"},
		Data:    [][]float64{{1000, 1100}},
	}
	v, ok := tbl.Value("Sales", "FY:2001")
	require.True(t, ok)
	assert.Equal(t, float64(1100), v)

	_, ok = tbl.Value("Sales", "FY:2009")
	assert.False(t, ok)
	_, ok = tbl.Value("COGS", "FY:2000")
	assert.False(t, ok)
}

func TestTableJSON_NonFinite(t *testing.T) {
	tbl := Table{
		Statement: StatementPL,
		Rows:      []TableRow{{AccountID: "acc:Sales", Name: "Sales"}},
		Columns:   []string{"FY:2000", "FY:2001", "FY:2002", "FY:2003"},
		Data:      [][]float64{{1e19, math.NaN(), math.Inf(1), math.Inf(-1)}},
	}

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"statement": "PL",
		"rows": [{"account_id": "acc:Sales", "name": "Sales"}],
		"columns": ["FY:2000", "FY:2001", "FY:2002", "FY:2003"],
		"data": [[1e19, "NaN", "Infinity", "-Infinity"]]
	}`, string(data))

	var back Table
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tbl.Columns, back.Columns)
	assert.Equal(t, tbl.Rows, back.Rows)
	require.Len(t, back.Data, 1)
	assert.Equal(t, 1e19, back.Data[0][0])
	assert.True(t, math.IsNaN(back.Data[0][1]))
	assert.True(t, math.IsInf(back.Data[0][2], 1))
	assert.True(t, math.IsInf(back.Data[0][3], -1))

	err = json.Unmarshal([]byte(`{"data": [["oops"]]}`), &back)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown marker "oops"`)
}

func TestOpApply(t *testing.T) {
	v, err := OpMul.Apply(3, 4)
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
	v, err = OpSub.Apply(3, 4)
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
	_, err = Op("DIV").Apply(1, 2)
	assert.Error(t, err)
}
