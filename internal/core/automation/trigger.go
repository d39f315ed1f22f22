package automation

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TriggerType discriminates trigger configurations
type TriggerType string

const (
	TriggerRowCreated TriggerType = "row_created"
	TriggerRowUpdated TriggerType = "row_updated"
	TriggerRowDeleted TriggerType = "row_deleted"
	TriggerSchedule   TriggerType = "schedule"
	TriggerWebhook    TriggerType = "webhook"
	TriggerCondition  TriggerType = "condition"
	TriggerManual     TriggerType = "manual"
)

// Trigger is implemented by exactly the trigger structs below
type Trigger interface {
	Type() TriggerType
	trigger()
}

type RowCreatedTrigger struct {
	TableID string `json:"table_id,omitempty"`
}

type RowUpdatedTrigger struct {
	TableID     string   `json:"table_id,omitempty"`
	WatchFields []string `json:"watch_fields,omitempty"`
}

type RowDeletedTrigger struct {
	TableID string `json:"table_id,omitempty"`
}

// ScheduleTrigger fires from the scheduler; see Schedule.Due
type ScheduleTrigger struct {
	Schedule
}

type WebhookTrigger struct{}

// ConditionTrigger fires on create or update when Formula is truthy
type ConditionTrigger struct {
	TableID string `json:"table_id,omitempty"`
	Formula string `json:"formula"`
}

type ManualTrigger struct{}

func (RowCreatedTrigger) Type() TriggerType { return TriggerRowCreated }
func (RowUpdatedTrigger) Type() TriggerType { return TriggerRowUpdated }
func (RowDeletedTrigger) Type() TriggerType { return TriggerRowDeleted }
func (ScheduleTrigger) Type() TriggerType   { return TriggerSchedule }
func (WebhookTrigger) Type() TriggerType    { return TriggerWebhook }
func (ConditionTrigger) Type() TriggerType  { return TriggerCondition }
func (ManualTrigger) Type() TriggerType     { return TriggerManual }

func (RowCreatedTrigger) trigger() {}
func (RowUpdatedTrigger) trigger() {}
func (RowDeletedTrigger) trigger() {}
func (ScheduleTrigger) trigger()   {}
func (WebhookTrigger) trigger()    {}
func (ConditionTrigger) trigger()  {}
func (ManualTrigger) trigger()     {}

// DecodeTrigger decodes a trigger config of the form {"type": "...", ...}
func DecodeTrigger(data []byte) (Trigger, error) {
	var probe struct {
		Type TriggerType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode trigger: %w", err)
	}

	var t Trigger
	var err error
	switch probe.Type {
	case TriggerRowCreated:
		var v RowCreatedTrigger
		err = json.Unmarshal(data, &v)
		t = v
	case TriggerRowUpdated:
		var v RowUpdatedTrigger
		err = json.Unmarshal(data, &v)
		t = v
	case TriggerRowDeleted:
		var v RowDeletedTrigger
		err = json.Unmarshal(data, &v)
		t = v
	case TriggerSchedule:
		var v ScheduleTrigger
		if err = json.Unmarshal(data, &v); err == nil {
			err = v.Schedule.Validate()
		}
		t = v
	case TriggerWebhook:
		t = WebhookTrigger{}
	case TriggerCondition:
		var v ConditionTrigger
		if err = json.Unmarshal(data, &v); err == nil {
			_, err = formula.Compile(v.Formula)
		}
		t = v
	case TriggerManual:
		t = ManualTrigger{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, probe.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s trigger: %w", probe.Type, err)
	}
	return t, nil
}

// EncodeTrigger is the inverse of DecodeTrigger
func EncodeTrigger(t Trigger) ([]byte, error) {
	return marshalTagged(string(t.Type()), t)
}

// marshalTagged marshals v as an object and adds a "type" key
func marshalTagged(typ string, v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}

// TriggerEvaluator decides whether an event starts a run
type TriggerEvaluator struct {
	formula *formula.Evaluator
	log     zerolog.Logger
}

// NewTriggerEvaluator creates a trigger evaluator
func NewTriggerEvaluator(ev *formula.Evaluator, logger *zerolog.Logger) *TriggerEvaluator {
	if ev == nil {
		ev = formula.NewEvaluator()
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &TriggerEvaluator{formula: ev, log: l}
}

// Evaluate returns whether a should run for ev and the initial context.
// A manual event runs any trigger type.
func (te *TriggerEvaluator) Evaluate(a *Automation, ev Event, fields []formula.FieldMeta) (bool, Context) {
	actx := Context{
		AutomationID: a.ID,
		TriggerType:  a.Trigger.Type(),
		TriggerData:  map[string]interface{}{},
		TableID:      ev.TableID,
		RecordID:     ev.RecordID,
		Variables:    map[string]interface{}{},
	}
	if actx.TableID == "" {
		actx.TableID = a.TableID
	}

	if ev.Kind == EventManual {
		actx.TriggerData = copyMap(ev.Payload)
		if len(actx.TriggerData) == 0 && ev.New != nil {
			actx.TriggerData = copyMap(ev.New)
		}
		return true, actx
	}

	if table := triggerTable(a); table != "" && ev.TableID != "" && table != ev.TableID {
		return false, actx
	}

	switch t := a.Trigger.(type) {
	case RowCreatedTrigger:
		actx.TriggerData = copyMap(ev.New)
		return ev.Kind == EventCreated, actx

	case RowDeletedTrigger:
		actx.TriggerData = copyMap(ev.Old)
		return ev.Kind == EventDeleted, actx

	case RowUpdatedTrigger:
		actx.TriggerData = updatedData(ev)
		if ev.Kind != EventUpdated {
			return false, actx
		}
		if len(t.WatchFields) == 0 {
			return true, actx
		}
		return watchedFieldChanged(t.WatchFields, ev.Old, ev.New), actx

	case ScheduleTrigger:
		actx.TriggerData = copyMap(ev.Payload)
		return ev.Kind == EventSchedule, actx

	case WebhookTrigger:
		actx.TriggerData = copyMap(ev.Payload)
		return ev.Kind == EventWebhook, actx

	case ConditionTrigger:
		actx.TriggerData = copyMap(ev.New)
		if ev.Kind != EventCreated && ev.Kind != EventUpdated {
			return false, actx
		}
		return te.evalCondition(a, t.Formula, ev.New, fields), actx

	case ManualTrigger:
		return false, actx
	}

	te.log.Error().Str("automation_id", a.ID).Msgf("❌ %v: %T", ErrUnknownTrigger, a.Trigger)
	return false, actx
}

// Listens reports whether the trigger type and table of a accept events of
// this kind. It does not evaluate watched fields or condition formulas.
func Listens(a *Automation, ev Event) bool {
	if a.Trigger == nil {
		return false
	}
	if ev.Kind == EventManual {
		return true
	}
	if table := triggerTable(a); table != "" && ev.TableID != "" && table != ev.TableID {
		return false
	}
	switch a.Trigger.(type) {
	case RowCreatedTrigger:
		return ev.Kind == EventCreated
	case RowUpdatedTrigger:
		return ev.Kind == EventUpdated
	case RowDeletedTrigger:
		return ev.Kind == EventDeleted
	case ConditionTrigger:
		return ev.Kind == EventCreated || ev.Kind == EventUpdated
	case ScheduleTrigger:
		return ev.Kind == EventSchedule
	case WebhookTrigger:
		return ev.Kind == EventWebhook
	}
	return false
}

// evalCondition fails closed on compile errors, sentinels and panics
func (te *TriggerEvaluator) evalCondition(a *Automation, src string, row formula.Row, fields []formula.FieldMeta) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			te.log.Error().Str("automation_id", a.ID).Msgf("❌ condition trigger panicked: %v", r)
			ok = false
		}
	}()

	root, err := formula.Compile(src)
	if err != nil {
		te.log.Error().Err(err).Str("automation_id", a.ID).Msg("❌ condition trigger formula is invalid")
		return false
	}
	result := te.formula.Evaluate(root, row, fields)
	if formula.IsSentinel(result) {
		te.log.Warn().Str("automation_id", a.ID).Msgf("⚠️ condition trigger evaluated to %v", result)
		return false
	}
	return formula.IsTruthy(result)
}

func triggerTable(a *Automation) string {
	switch t := a.Trigger.(type) {
	case RowCreatedTrigger:
		if t.TableID != "" {
			return t.TableID
		}
	case RowUpdatedTrigger:
		if t.TableID != "" {
			return t.TableID
		}
	case RowDeletedTrigger:
		if t.TableID != "" {
			return t.TableID
		}
	case ConditionTrigger:
		if t.TableID != "" {
			return t.TableID
		}
	case ScheduleTrigger, WebhookTrigger, ManualTrigger:
		return ""
	}
	return a.TableID
}

// updatedData flattens the new row and adds "old" and "new"
func updatedData(ev Event) map[string]interface{} {
	data := copyMap(ev.New)
	data["old"] = copyMap(ev.Old)
	data["new"] = copyMap(ev.New)
	return data
}

func watchedFieldChanged(watch []string, before, after formula.Row) bool {
	for _, field := range watch {
		if !sameValue(before[field], after[field]) {
			return true
		}
	}
	return false
}

// sameValue is value equality for comparable values and DeepEqual for
// slices and maps, without any type coercion. Events arrive decoded from
// JSON, so old and new never share a list; comparing by reference would
// report every multi-select field as changed.
func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func copyMap[M ~map[string]interface{}](m M) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
