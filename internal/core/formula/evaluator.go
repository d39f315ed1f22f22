package formula

import (
	"math"
	"strings"
	"time"
)

// Evaluator walks an AST against a row. It holds no per-evaluation state
// and never mutates its inputs, so one instance can be shared.
type Evaluator struct {
	now func() time.Time
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithClock overrides the clock used by NOW() and TODAY()
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates an evaluator with a wall clock unless overridden
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = NewEvaluator()

// Evaluate runs root against row with the default evaluator
func Evaluate(root Node, row Row, fields []FieldMeta) Value {
	return defaultEvaluator.Evaluate(root, row, fields)
}

// Eval compiles and evaluates src. Lex and parse errors yield #ERROR!.
func Eval(src string, row Row, fields []FieldMeta) Value {
	return defaultEvaluator.EvalString(src, row, fields)
}

// EvalString compiles and evaluates src. Lex and parse errors yield #ERROR!.
func (e *Evaluator) EvalString(src string, row Row, fields []FieldMeta) Value {
	root, err := Compile(src)
	if err != nil {
		return SentinelError
	}
	return e.Evaluate(root, row, fields)
}

// Evaluate returns the value of root for the given row, or a Sentinel.
// It never panics: a runtime fault in a node yields #ERROR!.
func (e *Evaluator) Evaluate(root Node, row Row, fields []FieldMeta) (result Value) {
	if root == nil {
		return SentinelError
	}
	defer func() {
		if r := recover(); r != nil {
			result = SentinelError
		}
	}()
	s := &scope{ev: e, row: row, meta: make(map[string]FieldMeta, len(fields))}
	for _, f := range fields {
		s.meta[strings.ToLower(f.Name)] = f
	}
	return s.eval(root)
}

type scope struct {
	ev   *Evaluator
	row  Row
	meta map[string]FieldMeta
}

func (s *scope) eval(n Node) Value {
	switch node := n.(type) {
	case *Literal:
		return node.Value
	case *FieldRef:
		return s.field(node.Name)
	case *UnaryOp:
		v := s.eval(node.Operand)
		if IsSentinel(v) {
			return v
		}
		f, ok := ToNumber(v)
		if !ok {
			return SentinelError
		}
		return -f
	case *BinaryOp:
		return s.binary(node)
	case *FunctionCall:
		return s.call(node)
	}
	return SentinelError
}

func (s *scope) field(name string) Value {
	meta, known := s.meta[strings.ToLower(name)]

	v, ok := s.row[name]
	if !ok {
		for k, rv := range s.row {
			if strings.EqualFold(k, name) {
				v, ok = rv, true
				break
			}
		}
	}
	if !ok {
		if known {
			return nil
		}
		return SentinelField
	}
	return Normalize(v, meta.Type)
}

func (s *scope) binary(node *BinaryOp) Value {
	left := s.eval(node.Left)
	if IsSentinel(left) {
		return left
	}
	right := s.eval(node.Right)
	if IsSentinel(right) {
		return right
	}

	switch node.Op {
	case OpEq, OpNotEq, OpGt, OpLt, OpGte, OpLte:
		return compare(node.Op, left, right)
	case OpAdd:
		return add(left, right)
	case OpSub:
		return subtract(left, right)
	case OpMul, OpDiv:
		l, lok := ToNumber(left)
		r, rok := ToNumber(right)
		if !lok || !rok {
			return SentinelError
		}
		if node.Op == OpMul {
			return finite(l * r)
		}
		if r == 0 {
			return SentinelDivZero
		}
		return finite(l / r)
	}
	return SentinelError
}

// Compare applies a comparison operator with the evaluator's coercion rules.
// It is shared with filter conditions.
func Compare(op string, left, right Value) bool {
	b, _ := compare(op, left, right).(bool)
	return b
}

func compare(op string, left, right Value) Value {
	if IsBlank(left) && IsBlank(right) {
		return ordered(op, 0)
	}

	_, lTime := left.(time.Time)
	_, rTime := right.(time.Time)
	if lTime || rTime {
		lt, lok := ToTime(left)
		rt, rok := ToTime(right)
		if !lok || !rok {
			return op == OpNotEq
		}
		return ordered(op, cmpFloat(float64(lt.UnixMilli()), float64(rt.UnixMilli())))
	}

	lb, lBool := left.(bool)
	rb, rBool := right.(bool)
	if lBool && rBool {
		return ordered(op, cmpFloat(boolNum(lb), boolNum(rb)))
	}

	if l, r, ok := numericPair(left, right); ok {
		return ordered(op, cmpFloat(l, r))
	}

	return ordered(op, strings.Compare(ToString(left), ToString(right)))
}

// numericPair succeeds when both sides look numeric, or one looks numeric
// and the other is blank or boolean.
func numericPair(left, right Value) (float64, float64, bool) {
	l, lok := asNumber(left)
	r, rok := asNumber(right)
	switch {
	case lok && rok:
		return l, r, true
	case lok && isBlankOrBool(right):
		r, _ = ToNumber(right)
		return l, r, true
	case rok && isBlankOrBool(left):
		l, _ = ToNumber(left)
		return l, r, true
	}
	return 0, 0, false
}

func isBlankOrBool(v Value) bool {
	_, isBool := v.(bool)
	return isBool || IsBlank(v)
}

func ordered(op string, c int) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNotEq:
		return c != 0
	case OpGt:
		return c > 0
	case OpLt:
		return c < 0
	case OpGte:
		return c >= 0
	case OpLte:
		return c <= 0
	}
	return false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

const day = 24 * time.Hour

func add(left, right Value) Value {
	if lt, ok := left.(time.Time); ok {
		if days, ok := ToNumber(right); ok {
			return lt.Add(time.Duration(days * float64(day)))
		}
		return SentinelError
	}
	if rt, ok := right.(time.Time); ok {
		if days, ok := ToNumber(left); ok {
			return rt.Add(time.Duration(days * float64(day)))
		}
		return SentinelError
	}

	l, lok := ToNumber(left)
	r, rok := ToNumber(right)
	if lok && rok {
		return finite(l + r)
	}
	return ToString(left) + ToString(right)
}

func subtract(left, right Value) Value {
	if lt, ok := left.(time.Time); ok {
		if rt, ok := ToTime(right); ok {
			return float64(lt.Sub(rt)) / float64(day)
		}
		if days, ok := ToNumber(right); ok {
			return lt.Add(-time.Duration(days * float64(day)))
		}
		return SentinelError
	}
	l, lok := ToNumber(left)
	r, rok := ToNumber(right)
	if !lok || !rok {
		return SentinelError
	}
	return finite(l - r)
}

func finite(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return SentinelError
	}
	return f
}

func (s *scope) call(node *FunctionCall) Value {
	if node.Name == "IF" {
		return s.callIf(node)
	}

	fn, ok := registry[node.Name]
	if !ok {
		return SentinelError
	}
	if len(node.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(node.Args) > fn.maxArgs) {
		return SentinelError
	}

	args := make([]Value, len(node.Args))
	for i, arg := range node.Args {
		v := s.eval(arg)
		if IsSentinel(v) && !fn.acceptsErrors {
			return v
		}
		args[i] = v
	}
	return fn.impl(s.ev, args)
}

// IF evaluates only the branch it takes
func (s *scope) callIf(node *FunctionCall) Value {
	if len(node.Args) < 2 || len(node.Args) > 3 {
		return SentinelError
	}
	cond := s.eval(node.Args[0])
	if IsSentinel(cond) {
		return cond
	}
	if IsTruthy(cond) {
		return s.eval(node.Args[1])
	}
	if len(node.Args) == 3 {
		return s.eval(node.Args[2])
	}
	return nil
}
