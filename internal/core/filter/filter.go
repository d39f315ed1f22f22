package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Group operators
const (
	And = "AND"
	Or  = "OR"
)

// Condition operators
const (
	OpEqual              = "equal"
	OpNotEqual           = "not_equal"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpIsEmpty            = "is_empty"
	OpIsNotEmpty         = "is_not_empty"
	OpGreaterThan        = "greater_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThan           = "less_than"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpIsBefore           = "is_before"
	OpIsAfter            = "is_after"
	OpInList             = "in_list"
	OpNotInList          = "not_in_list"
)

// Node is either a *Group or a *Condition
type Node interface {
	isNode()
}

// Group combines its children with AND or OR. A group with no children
// places no constraint on the record.
type Group struct {
	Operator string `json:"operator"`
	Children []Node `json:"children"`
}

// Condition compares one field against a value
type Condition struct {
	FieldID  string      `json:"field_id"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

func (*Group) isNode()     {}
func (*Condition) isNode() {}

// NewGroup builds a group from children
func NewGroup(op string, children ...Node) *Group {
	return &Group{Operator: op, Children: children}
}

// IsEmpty reports whether the group has no children
func (g *Group) IsEmpty() bool {
	return g == nil || len(g.Children) == 0
}

// UnmarshalJSON decodes children as groups or conditions depending on
// whether they carry a "children" array.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw struct {
		Operator string            `json:"operator"`
		Children []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode filter group: %w", err)
	}

	g.Operator = strings.ToUpper(raw.Operator)
	if g.Operator == "" {
		g.Operator = And
	}
	if g.Operator != And && g.Operator != Or {
		return fmt.Errorf("decode filter group: unknown operator %q", raw.Operator)
	}

	g.Children = make([]Node, 0, len(raw.Children))
	for i, child := range raw.Children {
		node, err := decodeNode(child)
		if err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
		g.Children = append(g.Children, node)
	}
	return nil
}

func decodeNode(data []byte) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode filter node: %w", err)
	}
	if _, ok := probe["children"]; ok {
		g := &Group{}
		if err := json.Unmarshal(data, g); err != nil {
			return nil, err
		}
		return g, nil
	}
	c := &Condition{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode filter condition: %w", err)
	}
	return c, nil
}

// Parse decodes a filter tree from JSON. Empty input and "null" yield an empty group.
func Parse(data []byte) (*Group, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &Group{Operator: And}, nil
	}
	g := &Group{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Normalize returns a copy of g with blank conditions and empty groups
// removed and single-child groups collapsed into their parent. The result
// is never nil.
func Normalize(g *Group) *Group {
	if g == nil {
		return &Group{Operator: And}
	}
	op := g.Operator
	if op == "" {
		op = And
	}
	out := &Group{Operator: op}
	for _, child := range g.Children {
		switch n := child.(type) {
		case *Condition:
			if n == nil || strings.TrimSpace(n.FieldID) == "" || n.Operator == "" {
				continue
			}
			c := *n
			out.Children = append(out.Children, &c)
		case *Group:
			sub := Normalize(n)
			switch {
			case sub.IsEmpty():
				continue
			case len(sub.Children) == 1 || sub.Operator == op:
				out.Children = append(out.Children, sub.Children...)
			default:
				out.Children = append(out.Children, sub)
			}
		}
	}
	return out
}

var operatorSymbols = map[string]string{
	OpEqual:              "=",
	OpNotEqual:           "≠",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpIsBefore:           "before",
	OpIsAfter:            "after",
	OpContains:           "contains",
	OpNotContains:        "does not contain",
	OpStartsWith:         "starts with",
	OpEndsWith:           "ends with",
	OpInList:             "in",
	OpNotInList:          "not in",
}

// Format renders the normalized tree as a human-readable expression,
// e.g. {Status} = "Done" AND ({Age} > 18 OR {Tags} contains "vip")
func Format(g *Group) string {
	return formatGroup(Normalize(g), true)
}

func formatGroup(g *Group, top bool) string {
	if g.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(g.Children))
	for _, child := range g.Children {
		switch n := child.(type) {
		case *Condition:
			parts = append(parts, formatCondition(n))
		case *Group:
			parts = append(parts, formatGroup(n, false))
		}
	}
	s := strings.Join(parts, " "+g.Operator+" ")
	if !top && len(parts) > 1 {
		return "(" + s + ")"
	}
	return s
}

func formatCondition(c *Condition) string {
	field := "{" + c.FieldID + "}"
	switch c.Operator {
	case OpIsEmpty:
		return field + " is empty"
	case OpIsNotEmpty:
		return field + " is not empty"
	}
	sym, ok := operatorSymbols[c.Operator]
	if !ok {
		sym = c.Operator
	}
	return fmt.Sprintf("%s %s %s", field, sym, formatValue(c.Value))
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return `""`
	case string:
		return fmt.Sprintf("%q", t)
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, formatValue(item))
		}
		return "[" + strings.Join(items, ", ") + "]"
	}
	return fmt.Sprint(v)
}
