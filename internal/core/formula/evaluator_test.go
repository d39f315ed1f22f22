package formula

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		formula string
		want    Value
	}{
		{"1 + 2 * 3", 7.0},
		{"(1 + 2) * 3", 9.0},
		{"-4 + 10 / 4", -1.5},
		{"=2*2", 4.0},
		{`"abc" + 1`, "abc1"},
		{`"2" + "3"`, 5.0},
		{"5/0", SentinelDivZero},
		{"MOD(7, 0)", SentinelDivZero},
		{"1 +", SentinelError},
		{"FOO(1)", SentinelError},
		{"NOT(1, 2)", SentinelError},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assert.Equal(t, tt.want, Eval(tt.formula, Row{}, nil))
		})
	}
}

func TestEvalFieldReferences(t *testing.T) {
	fields := []FieldMeta{{Name: "Age", Type: FieldNumber}, {Name: "Notes", Type: FieldText}}

	assert.Equal(t, true, Eval("{Age} > 18", Row{"Age": 20}, fields))
	assert.Equal(t, false, Eval("{Age} > 18", Row{"Age": 15}, fields))
	assert.Equal(t, true, Eval("{age} = 15", Row{"Age": "15"}, fields))

	assert.Equal(t, SentinelField, Eval("{Missing}", Row{"Age": 20}, fields))
	assert.Equal(t, SentinelField, Eval("{Missing} + 1", Row{}, nil))

	// known but absent from the row reads as blank
	assert.Equal(t, true, Eval("ISBLANK({Notes})", Row{"Age": 20}, fields))
}

func TestEvalComparisonCoercion(t *testing.T) {
	fields := []FieldMeta{{Name: "Due", Type: FieldDate}}
	row := Row{"Due": "2024-01-15", "Label": "beta"}

	tests := []struct {
		formula string
		want    Value
	}{
		{`"10" > "9"`, true},
		{`"10" > 9`, true},
		{`{Label} > "alpha"`, true},
		{`{Label} = "beta"`, true},
		{`{Label} != "beta"`, false},
		{`{Due} < "2024-02-01"`, true},
		{`{Due} = "2024-01-15"`, true},
		{`{Due} - "2024-01-10"`, 5.0},
		{`TRUE = TRUE`, true},
		{`BLANK() = ""`, true},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			assert.Equal(t, tt.want, Eval(tt.formula, row, fields))
		})
	}
}

func TestEvalFunctions(t *testing.T) {
	fixed := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	ev := NewEvaluator(WithClock(func() time.Time { return fixed }))
	row := Row{"Name": "Ann", "Scores": []interface{}{1, 2, 3}}

	tests := []struct {
		formula string
		want    Value
	}{
		{`IF(TRUE, 1, 1/0)`, 1.0},
		{`IF(FALSE, 1)`, nil},
		{`ISERROR(1/0)`, true},
		{`AND(1, "x", TRUE)`, true},
		{`OR(0, "")`, false},
		{`NOT({Name} = "Ann")`, false},
		{`FIND("b", "abc")`, 2.0},
		{`FIND("z", "abc")`, 0.0},
		{`SEARCH("B", "abc")`, 2.0},
		{`CONCATENATE("Hi ", {Name}, "!")`, "Hi Ann!"},
		{`LEN({Name})`, 3.0},
		{`UPPER({Name})`, "ANN"},
		{`TRIM("  x ")`, "x"},
		{`LEFT("hello", 2)`, "he"},
		{`RIGHT("hello", 3)`, "llo"},
		{`MID("hello", 2, 3)`, "ell"},
		{`SUBSTITUTE("a-b-c", "-", "+")`, "a+b+c"},
		{`VALUE("$1,200")`, 1200.0},
		{`SUM(1, 2, 3)`, 6.0},
		{`SUM({Scores})`, 6.0},
		{`AVERAGE(2, 4)`, 3.0},
		{`MIN(3, 1, 2)`, 1.0},
		{`MAX(3, 1, 2)`, 3.0},
		{`ROUND(2.5)`, 3.0},
		{`ROUND(1.26, 1)`, 1.3},
		{`ABS(-2)`, 2.0},
		{`NOW()`, fixed},
		{`TODAY()`, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{`YEAR(NOW())`, 2024.0},
		{`DAY(DATEADD(TODAY(), 2, "days"))`, 12.0},
		{`DATETIME_DIFF("2024-01-10", "2024-01-01", "day")`, 9.0},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			root, err := Compile(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Evaluate(root, row, nil))
		})
	}
}

func TestEvaluateDoesNotMutateRow(t *testing.T) {
	row := Row{"Count": 1}
	assert.Equal(t, 2.0, Eval("{Count} + 1", row, nil))
	assert.Equal(t, Row{"Count": 1}, row)
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		value Value
		want  bool
	}{
		{nil, false},
		{0.0, false},
		{0, false},
		{"", false},
		{false, false},
		{SentinelError, false},
		{"#FIELD!", false},
		{"#WIN!", true},
		{1.0, true},
		{"no", true},
		{true, true},
		{[]interface{}{"a"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTruthy(tt.value), "IsTruthy(%#v)", tt.value)
	}
}

func TestCompare(t *testing.T) {
	assert.True(t, Compare(OpEq, 3, "3"))
	assert.True(t, Compare(OpLt, "apple", "banana"))
	assert.False(t, Compare(OpGt, nil, 1))
	assert.True(t, Compare(OpGte, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "2024-01-01"))
}

func TestUserTextShapedLikeErrorIsData(t *testing.T) {
	row := Row{"Tag": "#WIN!"}
	assert.False(t, IsSentinel("#WIN!"))
	assert.True(t, IsSentinel("#DIV/0!"))
	assert.Equal(t, "#WIN! today", Eval(`{Tag} + " today"`, row, nil))
	assert.Equal(t, true, Eval(`{Tag} = "#WIN!"`, row, nil))
	assert.Equal(t, false, Eval(`ISERROR({Tag})`, row, nil))
}

func TestHugeTextArgumentsDoNotPanic(t *testing.T) {
	tests := []struct {
		formula string
		row     Row
		want    Value
	}{
		{`LEFT("abc", {n})`, Row{"n": "1e300"}, "abc"},
		{`RIGHT("abc", {n})`, Row{"n": 1e300}, "abc"},
		{`MID("abc", 2, {n})`, Row{"n": "1e300"}, "bc"},
		{`MID("abc", {n}, 1)`, Row{"n": "1e300"}, ""},
		{`FIND("b", "abc", {n})`, Row{"n": "1e300"}, 0.0},
		{`LEFT("abc", {n})`, Row{"n": "NaN"}, SentinelError},
		{`LEFT("abc", {n})`, Row{"n": "-Inf"}, SentinelError},
		{`LEFT("abc", {n})`, Row{"n": "Inf"}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			var got Value
			require.NotPanics(t, func() { got = Eval(tt.formula, tt.row, nil) })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateRecoversFromFaultyNode(t *testing.T) {
	var broken *Literal
	assert.Equal(t, SentinelError, Evaluate(broken, Row{}, nil))
}
