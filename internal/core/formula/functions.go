package formula

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

type function struct {
	minArgs       int
	maxArgs       int // -1 for variadic
	acceptsErrors bool
	impl          func(ev *Evaluator, args []Value) Value
}

// registry is fixed at build time. IF is handled by the evaluator because
// its branches are evaluated lazily.
var registry = map[string]function{
	// Logic
	"AND":     {minArgs: 1, maxArgs: -1, impl: fnAnd},
	"OR":      {minArgs: 1, maxArgs: -1, impl: fnOr},
	"NOT":     {minArgs: 1, maxArgs: 1, impl: func(_ *Evaluator, a []Value) Value { return !IsTruthy(a[0]) }},
	"ISBLANK": {minArgs: 1, maxArgs: 1, acceptsErrors: true, impl: func(_ *Evaluator, a []Value) Value { return IsBlank(a[0]) }},
	"ISERROR": {minArgs: 1, maxArgs: 1, acceptsErrors: true, impl: func(_ *Evaluator, a []Value) Value { return IsSentinel(a[0]) }},
	"BLANK":   {maxArgs: 0, impl: func(*Evaluator, []Value) Value { return nil }},
	"TRUE":    {maxArgs: 0, impl: func(*Evaluator, []Value) Value { return true }},
	"FALSE":   {maxArgs: 0, impl: func(*Evaluator, []Value) Value { return false }},

	// Text
	"FIND":        {minArgs: 2, maxArgs: 3, impl: fnFind(false)},
	"SEARCH":      {minArgs: 2, maxArgs: 3, impl: fnFind(true)},
	"CONCATENATE": {minArgs: 1, maxArgs: -1, impl: fnConcatenate},
	"LEN":         {minArgs: 1, maxArgs: 1, impl: func(_ *Evaluator, a []Value) Value { return float64(utf8.RuneCountInString(ToString(a[0]))) }},
	"LOWER":       {minArgs: 1, maxArgs: 1, impl: func(_ *Evaluator, a []Value) Value { return strings.ToLower(ToString(a[0])) }},
	"UPPER":       {minArgs: 1, maxArgs: 1, impl: func(_ *Evaluator, a []Value) Value { return strings.ToUpper(ToString(a[0])) }},
	"TRIM":        {minArgs: 1, maxArgs: 1, impl: func(_ *Evaluator, a []Value) Value { return strings.TrimSpace(ToString(a[0])) }},
	"LEFT":        {minArgs: 2, maxArgs: 2, impl: fnLeft},
	"RIGHT":       {minArgs: 2, maxArgs: 2, impl: fnRight},
	"MID":         {minArgs: 3, maxArgs: 3, impl: fnMid},
	"SUBSTITUTE":  {minArgs: 3, maxArgs: 3, impl: fnSubstitute},
	"VALUE":       {minArgs: 1, maxArgs: 1, impl: fnValue},

	// Numeric
	"SUM":     {minArgs: 1, maxArgs: -1, impl: fnSum},
	"AVERAGE": {minArgs: 1, maxArgs: -1, impl: fnAverage},
	"MIN":     {minArgs: 1, maxArgs: -1, impl: fnExtreme(-1)},
	"MAX":     {minArgs: 1, maxArgs: -1, impl: fnExtreme(1)},
	"ROUND":   {minArgs: 1, maxArgs: 2, impl: fnRound},
	"ABS":     {minArgs: 1, maxArgs: 1, impl: fnAbs},
	"MOD":     {minArgs: 2, maxArgs: 2, impl: fnMod},

	// Dates
	"NOW":           {maxArgs: 0, impl: func(ev *Evaluator, _ []Value) Value { return ev.now() }},
	"TODAY":         {maxArgs: 0, impl: fnToday},
	"YEAR":          {minArgs: 1, maxArgs: 1, impl: datePart(func(t time.Time) int { return t.Year() })},
	"MONTH":         {minArgs: 1, maxArgs: 1, impl: datePart(func(t time.Time) int { return int(t.Month()) })},
	"DAY":           {minArgs: 1, maxArgs: 1, impl: datePart(func(t time.Time) int { return t.Day() })},
	"DATEADD":       {minArgs: 3, maxArgs: 3, impl: fnDateAdd},
	"DATETIME_DIFF": {minArgs: 2, maxArgs: 3, impl: fnDateDiff},
}

// Functions lists the registered function names, IF included
func Functions() []string {
	names := make([]string, 0, len(registry)+1)
	names = append(names, "IF")
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func flatten(args []Value) []Value {
	var out []Value
	for _, a := range args {
		if list, ok := a.([]interface{}); ok {
			out = append(out, flatten(list)...)
			continue
		}
		out = append(out, a)
	}
	return out
}

func fnAnd(_ *Evaluator, args []Value) Value {
	for _, a := range flatten(args) {
		if !IsTruthy(a) {
			return false
		}
	}
	return true
}

func fnOr(_ *Evaluator, args []Value) Value {
	for _, a := range flatten(args) {
		if IsTruthy(a) {
			return true
		}
	}
	return false
}

// fnFind returns the 1-based position of needle in haystack, 0 when absent
func fnFind(foldCase bool) func(*Evaluator, []Value) Value {
	return func(_ *Evaluator, args []Value) Value {
		needle, haystack := ToString(args[0]), ToString(args[1])
		if foldCase {
			needle, haystack = strings.ToLower(needle), strings.ToLower(haystack)
		}
		start := 0
		if len(args) == 3 {
			n, ok := ToNumber(args[2])
			if !ok || n < 1 {
				return SentinelError
			}
			start = int(n) - 1
		}
		runes := []rune(haystack)
		if start > len(runes) {
			return float64(0)
		}
		idx := strings.Index(string(runes[start:]), needle)
		if idx < 0 {
			return float64(0)
		}
		return float64(start + utf8.RuneCountInString(string(runes[start:])[:idx]) + 1)
	}
}

func fnConcatenate(_ *Evaluator, args []Value) Value {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(ToString(a))
	}
	return sb.String()
}

// count converts a length or position argument. Anything past
// math.MaxInt32 is clamped so slice arithmetic cannot overflow.
func count(v Value) (int, bool) {
	n, ok := ToNumber(v)
	if !ok || math.IsNaN(n) || n < 0 {
		return 0, false
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(n), true
}

func fnLeft(_ *Evaluator, args []Value) Value {
	runes := []rune(ToString(args[0]))
	n, ok := count(args[1])
	if !ok {
		return SentinelError
	}
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n])
}

func fnRight(_ *Evaluator, args []Value) Value {
	runes := []rune(ToString(args[0]))
	n, ok := count(args[1])
	if !ok {
		return SentinelError
	}
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[len(runes)-n:])
}

func fnMid(_ *Evaluator, args []Value) Value {
	runes := []rune(ToString(args[0]))
	start, ok1 := count(args[1])
	n, ok2 := count(args[2])
	if !ok1 || !ok2 || start < 1 {
		return SentinelError
	}
	if start > len(runes) {
		return ""
	}
	if n > len(runes) {
		n = len(runes)
	}
	end := start - 1 + n
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start-1 : end])
}

func fnSubstitute(_ *Evaluator, args []Value) Value {
	old := ToString(args[1])
	if old == "" {
		return ToString(args[0])
	}
	return strings.ReplaceAll(ToString(args[0]), old, ToString(args[2]))
}

func fnValue(_ *Evaluator, args []Value) Value {
	s := strings.NewReplacer(",", "", "$", "", "%", "").Replace(ToString(args[0]))
	f, ok := asNumber(s)
	if !ok {
		return SentinelError
	}
	return f
}

func numbers(args []Value) ([]float64, bool) {
	var out []float64
	for _, a := range flatten(args) {
		if IsBlank(a) {
			continue
		}
		f, ok := ToNumber(a)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func fnSum(_ *Evaluator, args []Value) Value {
	nums, ok := numbers(args)
	if !ok {
		return SentinelError
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return finite(total)
}

func fnAverage(_ *Evaluator, args []Value) Value {
	nums, ok := numbers(args)
	if !ok {
		return SentinelError
	}
	if len(nums) == 0 {
		return SentinelDivZero
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return finite(total / float64(len(nums)))
}

func fnExtreme(sign float64) func(*Evaluator, []Value) Value {
	return func(_ *Evaluator, args []Value) Value {
		nums, ok := numbers(args)
		if !ok {
			return SentinelError
		}
		if len(nums) == 0 {
			return float64(0)
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if (n-best)*sign > 0 {
				best = n
			}
		}
		return best
	}
}

func fnRound(_ *Evaluator, args []Value) Value {
	x, ok := ToNumber(args[0])
	if !ok {
		return SentinelError
	}
	digits := 0.0
	if len(args) == 2 {
		if digits, ok = ToNumber(args[1]); !ok {
			return SentinelError
		}
	}
	pow := math.Pow(10, math.Trunc(digits))
	return finite(math.Round(x*pow) / pow)
}

func fnAbs(_ *Evaluator, args []Value) Value {
	x, ok := ToNumber(args[0])
	if !ok {
		return SentinelError
	}
	return math.Abs(x)
}

func fnMod(_ *Evaluator, args []Value) Value {
	a, ok1 := ToNumber(args[0])
	b, ok2 := ToNumber(args[1])
	if !ok1 || !ok2 {
		return SentinelError
	}
	if b == 0 {
		return SentinelDivZero
	}
	return math.Mod(a, b)
}

func fnToday(ev *Evaluator, _ []Value) Value {
	now := ev.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func datePart(part func(time.Time) int) func(*Evaluator, []Value) Value {
	return func(_ *Evaluator, args []Value) Value {
		t, ok := ToTime(args[0])
		if !ok {
			return SentinelError
		}
		return float64(part(t))
	}
}

func fnDateAdd(_ *Evaluator, args []Value) Value {
	t, ok := ToTime(args[0])
	if !ok {
		return SentinelError
	}
	n, ok := ToNumber(args[1])
	if !ok {
		return SentinelError
	}
	switch unit(args[2]) {
	case "years":
		return t.AddDate(int(n), 0, 0)
	case "months":
		return t.AddDate(0, int(n), 0)
	case "weeks":
		return t.AddDate(0, 0, int(n)*7)
	case "days":
		return t.AddDate(0, 0, int(n))
	case "hours":
		return t.Add(time.Duration(n * float64(time.Hour)))
	case "minutes":
		return t.Add(time.Duration(n * float64(time.Minute)))
	case "seconds":
		return t.Add(time.Duration(n * float64(time.Second)))
	}
	return SentinelError
}

// fnDateDiff returns date1 - date2 in the requested unit (seconds by default)
func fnDateDiff(_ *Evaluator, args []Value) Value {
	a, ok1 := ToTime(args[0])
	b, ok2 := ToTime(args[1])
	if !ok1 || !ok2 {
		return SentinelError
	}
	u := "seconds"
	if len(args) == 3 {
		u = unit(args[2])
	}
	d := a.Sub(b)
	switch u {
	case "seconds":
		return math.Trunc(d.Seconds())
	case "minutes":
		return math.Trunc(d.Minutes())
	case "hours":
		return math.Trunc(d.Hours())
	case "days":
		return math.Trunc(d.Hours() / 24)
	case "weeks":
		return math.Trunc(d.Hours() / (24 * 7))
	case "months":
		return float64((a.Year()-b.Year())*12 + int(a.Month()) - int(b.Month()))
	case "years":
		return float64(a.Year() - b.Year())
	}
	return SentinelError
}

func unit(v Value) string {
	u := strings.ToLower(strings.TrimSpace(ToString(v)))
	if u != "" && !strings.HasSuffix(u, "s") {
		u += "s"
	}
	return u
}
