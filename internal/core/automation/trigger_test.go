package automation

import (
	"testing"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowUpdatedWatchFields(t *testing.T) {
	te := NewTriggerEvaluator(nil, nil)
	a := &Automation{ID: "a1", Trigger: RowUpdatedTrigger{WatchFields: []string{"status"}}}

	ev := Event{
		Kind: EventUpdated, TableID: "tasks", RecordID: "r1",
		Old: formula.Row{"status": "open", "title": "a"},
		New: formula.Row{"status": "open", "title": "b"},
	}
	ok, _ := te.Evaluate(a, ev, nil)
	assert.False(t, ok, "unchanged watched field must not fire")

	ev.New = formula.Row{"status": "done", "title": "a"}
	ok, actx := te.Evaluate(a, ev, nil)
	assert.True(t, ok)
	assert.Equal(t, "done", actx.TriggerData["status"])
	assert.Equal(t, map[string]interface{}{"status": "open", "title": "a"}, actx.TriggerData["old"])
	assert.Equal(t, map[string]interface{}{"status": "done", "title": "a"}, actx.TriggerData["new"])
	assert.Equal(t, "r1", actx.RecordID)
	assert.Equal(t, "tasks", actx.TableID)
	assert.Equal(t, "a1", actx.AutomationID)

	ev.Old = formula.Row{"status": []interface{}{"a", "b"}}
	ev.New = formula.Row{"status": []interface{}{"a", "b"}}
	ok, _ = te.Evaluate(a, ev, nil)
	assert.False(t, ok, "equal lists are unchanged")

	ev.New = formula.Row{"status": "1"}
	ev.Old = formula.Row{"status": 1}
	ok, _ = te.Evaluate(a, ev, nil)
	assert.True(t, ok, "no coercion between types")

	all := &Automation{ID: "a2", Trigger: RowUpdatedTrigger{}}
	ok, _ = te.Evaluate(all, Event{Kind: EventUpdated, Old: formula.Row{"x": 1}, New: formula.Row{"x": 1}}, nil)
	assert.True(t, ok, "no watch fields fires on every update")
}

func TestTriggerEventKinds(t *testing.T) {
	te := NewTriggerEvaluator(nil, nil)
	row := formula.Row{"id": "r1", "name": "Ann"}

	tests := []struct {
		name    string
		trigger Trigger
		event   Event
		want    bool
	}{
		{"created fires on create", RowCreatedTrigger{}, Event{Kind: EventCreated, New: row}, true},
		{"created ignores delete", RowCreatedTrigger{}, Event{Kind: EventDeleted, Old: row}, false},
		{"deleted fires on delete", RowDeletedTrigger{}, Event{Kind: EventDeleted, Old: row}, true},
		{"table mismatch", RowCreatedTrigger{TableID: "orders"}, Event{Kind: EventCreated, TableID: "tasks", New: row}, false},
		{"table match", RowCreatedTrigger{TableID: "tasks"}, Event{Kind: EventCreated, TableID: "tasks", New: row}, true},
		{"schedule fires on tick", ScheduleTrigger{Schedule{Interval: IntervalDay}}, Event{Kind: EventSchedule}, true},
		{"webhook fires on webhook", WebhookTrigger{}, Event{Kind: EventWebhook, Payload: map[string]interface{}{"x": 1}}, true},
		{"webhook ignores create", WebhookTrigger{}, Event{Kind: EventCreated, New: row}, false},
		{"manual fires on manual", ManualTrigger{}, Event{Kind: EventManual}, true},
		{"manual event runs any trigger", RowDeletedTrigger{}, Event{Kind: EventManual}, true},
		{"condition true", ConditionTrigger{Formula: `{name} = "Ann"`}, Event{Kind: EventCreated, New: row}, true},
		{"condition false", ConditionTrigger{Formula: `{name} = "Bob"`}, Event{Kind: EventUpdated, New: row}, false},
		{"condition invalid fails closed", ConditionTrigger{Formula: `{name} = `}, Event{Kind: EventCreated, New: row}, false},
		{"condition sentinel fails closed", ConditionTrigger{Formula: `{missing}`}, Event{Kind: EventCreated, New: row}, false},
		{"condition ignores delete", ConditionTrigger{Formula: `TRUE`}, Event{Kind: EventDeleted, Old: row}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := te.Evaluate(&Automation{ID: "a", Trigger: tt.trigger}, tt.event, nil)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestTriggerData(t *testing.T) {
	te := NewTriggerEvaluator(nil, nil)

	_, actx := te.Evaluate(&Automation{Trigger: WebhookTrigger{}}, Event{Kind: EventWebhook, Payload: map[string]interface{}{"x": 1}}, nil)
	assert.Equal(t, map[string]interface{}{"x": 1}, actx.TriggerData)

	_, actx = te.Evaluate(&Automation{Trigger: ManualTrigger{}}, Event{Kind: EventManual}, nil)
	assert.Empty(t, actx.TriggerData)
	assert.NotNil(t, actx.Variables)

	_, actx = te.Evaluate(&Automation{Trigger: RowDeletedTrigger{}, TableID: "tasks"}, Event{Kind: EventDeleted, RecordID: "r1", Old: formula.Row{"name": "gone"}}, nil)
	assert.Equal(t, "gone", actx.TriggerData["name"])
	assert.Equal(t, "tasks", actx.TableID)
}

func TestDecodeTrigger(t *testing.T) {
	trig, err := DecodeTrigger([]byte(`{"type":"row_updated","table_id":"tasks","watch_fields":["status"]}`))
	require.NoError(t, err)
	assert.Equal(t, RowUpdatedTrigger{TableID: "tasks", WatchFields: []string{"status"}}, trig)

	trig, err = DecodeTrigger([]byte(`{"type":"schedule","interval":"day","time":"09:00"}`))
	require.NoError(t, err)
	assert.Equal(t, IntervalDay, trig.(ScheduleTrigger).Interval)

	raw, err := EncodeTrigger(trig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"schedule","interval":"day","time":"09:00"}`, string(raw))

	_, err = DecodeTrigger([]byte(`{"type":"row_moved"}`))
	assert.ErrorIs(t, err, ErrUnknownTrigger)

	_, err = DecodeTrigger([]byte(`{"type":"schedule","interval":"fortnight"}`))
	assert.Error(t, err)

	_, err = DecodeTrigger([]byte(`{"type":"condition","formula":"{a} >"}`))
	assert.Error(t, err)
}

func TestListens(t *testing.T) {
	updated := &Automation{Trigger: RowUpdatedTrigger{WatchFields: []string{"status"}}, TableID: "tasks"}
	assert.True(t, Listens(updated, Event{Kind: EventUpdated, TableID: "tasks"}))
	assert.False(t, Listens(updated, Event{Kind: EventUpdated, TableID: "orders"}))
	assert.False(t, Listens(updated, Event{Kind: EventCreated, TableID: "tasks"}))
	assert.True(t, Listens(updated, Event{Kind: EventManual}))

	cond := &Automation{Trigger: ConditionTrigger{TableID: "tasks", Formula: "FALSE"}}
	assert.True(t, Listens(cond, Event{Kind: EventCreated, TableID: "tasks"}), "formula is not evaluated")
	assert.False(t, Listens(cond, Event{Kind: EventDeleted, TableID: "tasks"}))

	assert.False(t, Listens(&Automation{Trigger: ManualTrigger{}}, Event{Kind: EventCreated}))
	assert.False(t, Listens(&Automation{}, Event{Kind: EventCreated}))
}
