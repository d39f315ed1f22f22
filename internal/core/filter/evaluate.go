package filter

import (
	"strings"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

// Evaluator checks records against filter trees
type Evaluator struct {
	byID   map[string]formula.FieldMeta
	byName map[string]formula.FieldMeta
}

// NewEvaluator creates an evaluator for a table's fields
func NewEvaluator(fields []formula.FieldMeta) *Evaluator {
	e := &Evaluator{
		byID:   make(map[string]formula.FieldMeta, len(fields)),
		byName: make(map[string]formula.FieldMeta, len(fields)),
	}
	for _, f := range fields {
		if f.ID != "" {
			e.byID[f.ID] = f
		}
		e.byName[strings.ToLower(f.Name)] = f
	}
	return e
}

// Evaluate is a shorthand for NewEvaluator(fields).Match(g, row)
func Evaluate(g *Group, row formula.Row, fields []formula.FieldMeta) bool {
	return NewEvaluator(fields).Match(g, row)
}

// Match normalizes g and evaluates it against row.
// Returns true if the group is empty.
func (e *Evaluator) Match(g *Group, row formula.Row) bool {
	return e.evalGroup(Normalize(g), row)
}

func (e *Evaluator) evalGroup(g *Group, row formula.Row) bool {
	if g.IsEmpty() {
		return true
	}

	if g.Operator == Or {
		for _, child := range g.Children {
			if e.evalNode(child, row) {
				return true
			}
		}
		return false
	}

	for _, child := range g.Children {
		if !e.evalNode(child, row) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evalNode(n Node, row formula.Row) bool {
	switch node := n.(type) {
	case *Group:
		return e.evalGroup(node, row)
	case *Condition:
		return e.evalCondition(node, row)
	}
	return false
}

// resolve finds the field a condition refers to, by id first and then by name
func (e *Evaluator) resolve(fieldID string) (name string, ft formula.FieldType) {
	if f, ok := e.byID[fieldID]; ok {
		return f.Name, f.Type
	}
	if f, ok := e.byName[strings.ToLower(fieldID)]; ok {
		return f.Name, f.Type
	}
	return fieldID, ""
}

func lookup(row formula.Row, name string) interface{} {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

func (e *Evaluator) evalCondition(c *Condition, row formula.Row) bool {
	name, ft := e.resolve(c.FieldID)
	fieldValue := formula.Normalize(lookup(row, name), ft)
	target := formula.Normalize(c.Value, ft)

	switch c.Operator {
	case OpEqual:
		return compareEquals(fieldValue, target)
	case OpNotEqual:
		return !compareEquals(fieldValue, target)
	case OpContains:
		return compareContains(fieldValue, target)
	case OpNotContains:
		return !compareContains(fieldValue, target)
	case OpStartsWith:
		return strings.HasPrefix(lower(fieldValue), lower(target))
	case OpEndsWith:
		return strings.HasSuffix(lower(fieldValue), lower(target))
	case OpIsEmpty:
		return formula.IsBlank(fieldValue)
	case OpIsNotEmpty:
		return !formula.IsBlank(fieldValue)
	case OpGreaterThan:
		return compareOrdered(formula.OpGt, fieldValue, target)
	case OpGreaterThanOrEqual:
		return compareOrdered(formula.OpGte, fieldValue, target)
	case OpLessThan:
		return compareOrdered(formula.OpLt, fieldValue, target)
	case OpLessThanOrEqual:
		return compareOrdered(formula.OpLte, fieldValue, target)
	case OpIsBefore:
		return compareDates(formula.OpLt, fieldValue, target)
	case OpIsAfter:
		return compareDates(formula.OpGt, fieldValue, target)
	case OpInList:
		return compareInList(fieldValue, target)
	case OpNotInList:
		return !compareInList(fieldValue, target)
	}
	return false
}

func lower(v interface{}) string {
	return strings.ToLower(formula.ToString(v))
}

// compareEquals matches scalars with formula coercion. A list field equals a
// value when any element does.
func compareEquals(fieldValue, target interface{}) bool {
	if list, ok := fieldValue.([]interface{}); ok {
		if other, ok := target.([]interface{}); ok {
			return sameElements(list, other)
		}
		for _, item := range list {
			if formula.Compare(formula.OpEq, item, target) {
				return true
			}
		}
		return false
	}
	return formula.Compare(formula.OpEq, fieldValue, target)
}

func sameElements(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !formula.Compare(formula.OpEq, a[i], b[i]) {
			return false
		}
	}
	return true
}

// compareContains does a case-insensitive substring match, or element match for lists
func compareContains(fieldValue, target interface{}) bool {
	if formula.IsBlank(target) {
		return true
	}
	if list, ok := fieldValue.([]interface{}); ok {
		want := lower(target)
		for _, item := range list {
			if lower(item) == want {
				return true
			}
		}
		return false
	}
	return strings.Contains(lower(fieldValue), lower(target))
}

// compareOrdered never matches a blank field
func compareOrdered(op string, fieldValue, target interface{}) bool {
	if formula.IsBlank(fieldValue) || formula.IsBlank(target) {
		return false
	}
	return formula.Compare(op, fieldValue, target)
}

func compareDates(op string, fieldValue, target interface{}) bool {
	ft, ok := formula.ToTime(fieldValue)
	if !ok {
		return false
	}
	tt, ok := formula.ToTime(target)
	if !ok {
		return false
	}
	return formula.Compare(op, ft, tt)
}

// compareInList accepts a list or a comma-separated string as the target
func compareInList(fieldValue, target interface{}) bool {
	var items []interface{}
	switch t := target.(type) {
	case []interface{}:
		items = t
	case string:
		for _, s := range strings.Split(t, ",") {
			items = append(items, strings.TrimSpace(s))
		}
	case nil:
		return false
	default:
		items = []interface{}{t}
	}

	for _, item := range items {
		if compareEquals(fieldValue, item) {
			return true
		}
	}
	return false
}
