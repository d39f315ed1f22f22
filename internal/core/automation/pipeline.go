package automation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/filter"
)

// Pipeline is either a FlatPipeline or a GroupedPipeline
type Pipeline interface {
	pipeline()
}

// FlatPipeline runs every action in order
type FlatPipeline []Action

// ActionGroup runs its actions when Condition matches or is absent
type ActionGroup struct {
	Condition *filter.Group
	Actions   []Action
}

// GroupedPipeline runs only the first matching group
type GroupedPipeline []ActionGroup

func (FlatPipeline) pipeline()    {}
func (GroupedPipeline) pipeline() {}

// DecodePipeline decides the pipeline shape once: a list whose elements
// carry an "actions" array is grouped, anything else is flat.
func DecodePipeline(data []byte) (Pipeline, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return FlatPipeline{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
	}
	if len(items) == 0 {
		return FlatPipeline{}, nil
	}

	if isGroup(items[0]) {
		groups := make(GroupedPipeline, 0, len(items))
		for i, item := range items {
			if !isGroup(item) {
				return nil, fmt.Errorf("%w: item %d mixes actions and action groups", ErrInvalidPipeline, i)
			}
			g, err := decodeGroup(item)
			if err != nil {
				return nil, fmt.Errorf("group %d: %w", i, err)
			}
			groups = append(groups, g)
		}
		return groups, nil
	}

	flat := make(FlatPipeline, 0, len(items))
	for i, item := range items {
		if isGroup(item) {
			return nil, fmt.Errorf("%w: item %d mixes actions and action groups", ErrInvalidPipeline, i)
		}
		a, err := DecodeAction(item)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		flat = append(flat, a)
	}
	return flat, nil
}

func isGroup(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	actions, ok := probe["actions"]
	return ok && len(bytes.TrimSpace(actions)) > 0 && bytes.TrimSpace(actions)[0] == '['
}

func decodeGroup(data []byte) (ActionGroup, error) {
	var raw struct {
		Condition json.RawMessage   `json:"condition"`
		Actions   []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ActionGroup{}, err
	}

	var g ActionGroup
	if len(raw.Condition) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Condition), []byte("null")) {
		cond, err := filter.Parse(raw.Condition)
		if err != nil {
			return ActionGroup{}, err
		}
		g.Condition = cond
	}
	for i, item := range raw.Actions {
		a, err := DecodeAction(item)
		if err != nil {
			return ActionGroup{}, fmt.Errorf("action %d: %w", i, err)
		}
		g.Actions = append(g.Actions, a)
	}
	return g, nil
}

// EncodePipeline is the inverse of DecodePipeline
func EncodePipeline(p Pipeline) ([]byte, error) {
	switch t := p.(type) {
	case FlatPipeline:
		return encodeActions(t)
	case GroupedPipeline:
		out := make([]json.RawMessage, 0, len(t))
		for _, g := range t {
			actions, err := encodeActions(g.Actions)
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(struct {
				Condition *filter.Group   `json:"condition,omitempty"`
				Actions   json.RawMessage `json:"actions"`
			}{g.Condition, actions})
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return json.Marshal(out)
	case nil:
		return []byte("[]"), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidPipeline, p)
}

func encodeActions(actions []Action) ([]byte, error) {
	out := make([]json.RawMessage, 0, len(actions))
	for _, a := range actions {
		b, err := EncodeAction(a)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

// Len returns the number of actions across the pipeline
func Len(p Pipeline) int {
	switch t := p.(type) {
	case FlatPipeline:
		return len(t)
	case GroupedPipeline:
		n := 0
		for _, g := range t {
			n += len(g.Actions)
		}
		return n
	}
	return 0
}
