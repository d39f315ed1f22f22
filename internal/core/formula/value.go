package formula

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Value is any scalar a formula can produce: nil, float64, string, bool,
// time.Time, []interface{} or a Sentinel.
type Value = interface{}

// Row maps field names to values for one record
type Row map[string]interface{}

// Sentinel is a data-level evaluation error. Sentinels are values, never Go errors.
type Sentinel string

const (
	SentinelError   Sentinel = "#ERROR!"
	SentinelField   Sentinel = "#FIELD!"
	SentinelDivZero Sentinel = "#DIV/0!"
)

func (s Sentinel) String() string { return string(s) }

// FieldType drives type coercion of row values
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldCheckbox    FieldType = "checkbox"
	FieldSelect      FieldType = "single_select"
	FieldMultiSelect FieldType = "multi_select"
)

// FieldMeta describes one field of a table
type FieldMeta struct {
	ID   string    `json:"id,omitempty"`
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// IsSentinel reports whether v is an evaluation error value
func IsSentinel(v Value) bool {
	switch s := v.(type) {
	case Sentinel:
		return true
	case string:
		return looksLikeSentinel(s)
	}
	return false
}

// looksLikeSentinel matches only the sentinels this package produces, as they
// read back from a stored cell. Other "#WORD!" text is ordinary data.
func looksLikeSentinel(s string) bool {
	switch Sentinel(s) {
	case SentinelError, SentinelField, SentinelDivZero:
		return true
	}
	return false
}

// IsTruthy applies the boolean coercion used by triggers and conditions:
// 0, "", nil, false and any sentinel are false.
func IsTruthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Sentinel:
		return false
	case bool:
		return t
	case string:
		return t != "" && !looksLikeSentinel(t)
	case time.Time:
		return !t.IsZero()
	case []interface{}:
		return len(t) > 0
	}
	if f, ok := asNumber(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

// IsBlank reports nil, empty strings and empty lists
func IsBlank(v Value) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// asNumber converts numeric kinds and numeric-looking strings. Booleans and
// dates are not numbers here.
func asNumber(v Value) (float64, bool) {
	switch t := v.(type) {
	case nil, bool, time.Time, Sentinel:
		return 0, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ToNumber is the arithmetic coercion: blank is 0 and booleans are 1/0
func ToNumber(v Value) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, true
		}
	}
	return asNumber(v)
}

// ToTime converts time values and date-like strings
func ToTime(v Value) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if strings.TrimSpace(t) == "" || looksLikeSentinel(t) {
			return time.Time{}, false
		}
		parsed, err := cast.ToTimeE(strings.TrimSpace(t))
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// ToString renders a value the way it would be displayed in a cell
func ToString(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case Sentinel:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return t.Format(time.RFC3339)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, ToString(item))
		}
		return strings.Join(parts, ", ")
	}
	return cast.ToString(v)
}

// Normalize maps a raw row value onto the evaluator's value space,
// using the field type when one is known.
func Normalize(v Value, ft FieldType) Value {
	switch ft {
	case FieldDate:
		if tm, ok := ToTime(v); ok {
			return tm
		}
	case FieldNumber:
		if f, ok := asNumber(v); ok {
			return f
		}
	case FieldCheckbox:
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return cast.ToFloat64(t)
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	if n, ok := v.(interface{ Float64() (float64, error) }); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}
