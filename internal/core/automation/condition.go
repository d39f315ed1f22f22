package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/filter"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

// Conditions gate a run after the trigger fires. Exactly one of Filter and
// Formula is set.
type Conditions struct {
	Filter  *filter.Group
	Formula string
}

// IsZero reports whether no condition is configured
func (c *Conditions) IsZero() bool {
	return c == nil || (strings.TrimSpace(c.Formula) == "" && c.Filter.IsEmpty())
}

// UnmarshalJSON accepts a formula string, {"formula": "..."} or a filter group
func (c *Conditions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Conditions{}
		return nil
	}

	if data[0] == '"' {
		var src string
		if err := json.Unmarshal(data, &src); err != nil {
			return err
		}
		*c = Conditions{Formula: src}
		return nil
	}

	var probe struct {
		Formula *string `json:"formula"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode conditions: %w", err)
	}
	if probe.Formula != nil {
		*c = Conditions{Formula: *probe.Formula}
		return nil
	}

	g, err := filter.Parse(data)
	if err != nil {
		return fmt.Errorf("decode conditions: %w", err)
	}
	*c = Conditions{Filter: g}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON
func (c Conditions) MarshalJSON() ([]byte, error) {
	if c.Formula != "" {
		return json.Marshal(map[string]string{"formula": c.Formula})
	}
	if c.Filter == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.Filter)
}

// ConditionEvaluator evaluates automation conditions
type ConditionEvaluator struct {
	formula *formula.Evaluator
}

// NewConditionEvaluator creates a new condition evaluator
func NewConditionEvaluator(ev *formula.Evaluator) *ConditionEvaluator {
	if ev == nil {
		ev = formula.NewEvaluator()
	}
	return &ConditionEvaluator{formula: ev}
}

// Evaluate returns true if the conditions pass (or if none are configured).
// Filter trees are permissive when empty; formulas fail closed and the
// returned error explains why.
func (e *ConditionEvaluator) Evaluate(c *Conditions, record formula.Row, fields []formula.FieldMeta) (ok bool, err error) {
	if c.IsZero() {
		return true, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("condition evaluation panicked: %v", r)
		}
	}()

	if strings.TrimSpace(c.Formula) != "" {
		root, err := formula.Compile(c.Formula)
		if err != nil {
			return false, fmt.Errorf("condition formula: %w", err)
		}
		result := e.formula.Evaluate(root, record, fields)
		if formula.IsSentinel(result) {
			return false, fmt.Errorf("condition formula evaluated to %v", result)
		}
		return formula.IsTruthy(result), nil
	}

	return filter.Evaluate(c.Filter, record, fields), nil
}
