package automation

import (
	"context"
	"testing"
	"time"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manual() Event { return Event{Kind: EventManual} }

func TestEngineFlatPipelineContinuesOnError(t *testing.T) {
	env := newTestEnv(t)
	a := &Automation{
		ID:      "auto-1",
		Trigger: ManualTrigger{},
		Pipeline: mustPipeline(t, `[
			{"type": "log_message", "message": "first"},
			{"type": "update_record", "table_id": "tasks", "record_id": "missing", "fields": {"done": true}},
			{"type": "log_message", "message": "third saw {{last_error}}"}
		]`),
	}

	run, err := env.engine.Run(context.Background(), a, manual())
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, run.Status)
	assert.Empty(t, run.Error)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, RunCompleted, env.runs.runs[run.ID].Status)

	errs := env.runs.messages(LevelError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Action 2 (update_record) failed")

	infos := env.runs.messages(LevelInfo)
	assert.Contains(t, infos, "first")
	assert.Contains(t, infos, "third saw update record missing: record not found: tasks/missing")

	assert.Contains(t, run.Context.Variables, "action_0_result")
	assert.NotContains(t, run.Context.Variables, "action_1_result")
	assert.Contains(t, run.Context.Variables, "action_2_result")
	assert.Contains(t, run.Context.Variables, "last_error")
}

func TestEngineStopExecution(t *testing.T) {
	env := newTestEnv(t)
	a := &Automation{
		ID:      "auto-stop",
		Trigger: ManualTrigger{},
		Pipeline: mustPipeline(t, `[
			{"type": "log_message", "message": "one"},
			{"type": "stop_execution", "reason": "enough"},
			{"type": "log_message", "message": "three"}
		]`),
	}

	run, err := env.engine.Run(context.Background(), a, manual())
	require.NoError(t, err)
	assert.Equal(t, RunStopped, run.Status)

	infos := env.runs.messages(LevelInfo)
	assert.Contains(t, infos, "one")
	assert.Contains(t, infos, "Execution stopped: enough")
	assert.NotContains(t, infos, "three")
}

func TestEngineActionGroupsFirstMatchWins(t *testing.T) {
	env := newTestEnv(t)
	a := &Automation{
		ID:      "auto-groups",
		Trigger: ManualTrigger{},
		Pipeline: mustPipeline(t, `[
			{"condition": {"operator": "AND", "children": [{"field_id": "priority", "operator": "equal", "value": "high"}]},
			 "actions": [{"type": "log_message", "message": "a1"}]},
			{"condition": {"operator": "AND", "children": [{"field_id": "priority", "operator": "is_not_empty"}]},
			 "actions": [{"type": "log_message", "message": "a2"}]},
			{"actions": [{"type": "log_message", "message": "fallback"}]}
		]`),
	}

	run, err := env.engine.Run(context.Background(), a, Event{Kind: EventManual, Payload: map[string]interface{}{"priority": "high"}})
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)

	infos := env.runs.messages(LevelInfo)
	assert.Contains(t, infos, "a1")
	assert.NotContains(t, infos, "a2")
	assert.NotContains(t, infos, "fallback")

	env = newTestEnv(t)
	_, err = env.engine.Run(context.Background(), a, Event{Kind: EventManual, Payload: map[string]interface{}{"priority": "low"}})
	require.NoError(t, err)
	infos = env.runs.messages(LevelInfo)
	assert.Contains(t, infos, "a2")
	assert.NotContains(t, infos, "a1")
}

func TestEngineNoGroupMatches(t *testing.T) {
	env := newTestEnv(t)
	a := &Automation{
		ID:      "auto-nomatch",
		Trigger: ManualTrigger{},
		Pipeline: mustPipeline(t, `[
			{"condition": {"operator": "AND", "children": [{"field_id": "x", "operator": "equal", "value": 1}]},
			 "actions": [{"type": "log_message", "message": "a1"}]}
		]`),
	}

	run, err := env.engine.Run(context.Background(), a, manual())
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Contains(t, env.runs.messages(LevelInfo), "No action group matched")
}

func TestEngineTriggerNotFiring(t *testing.T) {
	env := newTestEnv(t)
	a := &Automation{
		ID:       "auto-watch",
		Trigger:  RowUpdatedTrigger{WatchFields: []string{"status"}},
		Pipeline: mustPipeline(t, `[{"type": "log_message", "message": "fired"}]`),
	}

	run, err := env.engine.Run(context.Background(), a, Event{
		Kind: EventUpdated, TableID: "tasks", RecordID: "r1",
		Old: formula.Row{"status": "open", "title": "a"},
		New: formula.Row{"status": "open", "title": "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, run.Status)
	assert.NotContains(t, env.runs.messages(LevelInfo), "fired")
	assert.NotEmpty(t, env.runs.messages(LevelInfo), "every run leaves a log trail")
}

func TestEngineConditions(t *testing.T) {
	tests := []struct {
		name       string
		conditions string
		wantFired  bool
		wantError  bool
	}{
		{"formula true", `"{amount} > 100"`, true, false},
		{"formula false", `"{amount} > 1000"`, false, false},
		{"formula invalid fails closed", `"{amount} >"`, false, true},
		{"formula sentinel fails closed", `"{nope} > 1"`, false, true},
		{"filter true", `{"operator":"AND","children":[{"field_id":"amount","operator":"greater_than","value":100}]}`, true, false},
		{"empty filter passes", `{"operator":"AND","children":[]}`, true, false},
		{"huge text length is clamped", `"LEFT(\"abc\", {huge}) = \"abc\""`, true, false},
		{"NaN text length fails closed", `"LEFT(\"abc\", {nan}) = \"abc\""`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var conds Conditions
			require.NoError(t, conds.UnmarshalJSON([]byte(tt.conditions)))

			env := newTestEnv(t)
			a := &Automation{
				ID:         "auto-cond",
				Trigger:    WebhookTrigger{},
				Conditions: &conds,
				Pipeline:   mustPipeline(t, `[{"type": "log_message", "message": "fired"}]`),
			}
			run, err := env.engine.Run(context.Background(), a, Event{Kind: EventWebhook, Payload: map[string]interface{}{"amount": 250, "huge": "1e300", "nan": "NaN"}})
			require.NoError(t, err)
			assert.Equal(t, RunCompleted, run.Status)

			infos := env.runs.messages(LevelInfo)
			if tt.wantFired {
				assert.Contains(t, infos, "fired")
			} else {
				assert.NotContains(t, infos, "fired")
				assert.Contains(t, infos, "Conditions not met, skipping actions")
			}
			assert.Equal(t, tt.wantError, len(env.runs.messages(LevelError)) > 0)
		})
	}
}

func TestEngineCreateThenUpdateUsesNewRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := &Automation{
		ID:      "auto-create",
		Trigger: RowCreatedTrigger{TableID: "orders"},
		Pipeline: mustPipeline(t, `[
			{"type": "create_record", "id": "invoice", "table_id": "invoices", "fields": {"order": "{{record_id}}", "count": 1}},
			{"type": "update_record", "table_id": "invoices", "fields": {"count": "={count} + 1", "note": "for {{invoice.record_id}}"}}
		]`),
	}

	run, err := env.engine.Run(ctx, a, Event{Kind: EventCreated, TableID: "orders", RecordID: "o1", New: formula.Row{"id": "o1"}})
	require.NoError(t, err)
	require.Equal(t, RunCompleted, run.Status)
	assert.Empty(t, env.runs.messages(LevelError))

	invoiceID := run.Context.RecordID
	require.NotEqual(t, "o1", invoiceID)

	invoice, err := env.records.Get(ctx, "invoices", invoiceID)
	require.NoError(t, err)
	assert.Equal(t, "o1", invoice["order"])
	assert.Equal(t, 2.0, invoice["count"])
	assert.Equal(t, "for "+invoiceID, invoice["note"])
}

type bogusPipeline struct{}

func (bogusPipeline) pipeline() {}

func TestEnginePanicFailsRun(t *testing.T) {
	env := newTestEnv(t)
	a := &Automation{ID: "auto-broken", Trigger: ManualTrigger{}, Pipeline: bogusPipeline{}}

	run, err := env.engine.Run(context.Background(), a, manual())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "panicked")
	assert.Equal(t, RunFailed, env.runs.runs[run.ID].Status)
	assert.NotEmpty(t, env.runs.messages(LevelError))
}

func TestApplyIsPure(t *testing.T) {
	st := runState{ctx: Context{Variables: map[string]interface{}{}}}
	action := &LogMessageAction{Base: Base{ID: "greet"}, Message: "hi"}

	next, out := apply(st, 0, action, ActionResult{Success: true, Data: map[string]interface{}{"message": "hi"}})
	assert.Equal(t, outcomeContinue, out)
	assert.Empty(t, st.ctx.Variables)
	assert.Contains(t, next.ctx.Variables, "action_0_result")
	assert.Contains(t, next.ctx.Variables, "greet")

	_, out = apply(next, 1, &StopExecutionAction{}, ActionResult{Success: true, Stop: true})
	assert.Equal(t, outcomeStop, out)
}

func TestEngineNumbersLogsInOrder(t *testing.T) {
	runs := newMemRunStore()
	store := records.NewMemoryStore()
	fixed := func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }
	engine := NewEngine(runs, store, NewExecutor(store), WithIDGenerator(runs.nextID), WithEngineClock(fixed))

	a := &Automation{
		ID:       "auto-seq",
		Trigger:  ManualTrigger{},
		Pipeline: mustPipeline(t, `[{"type":"log_message","message":"one"},{"type":"log_message","message":"two"}]`),
	}
	_, err := engine.Run(context.Background(), a, manual())
	require.NoError(t, err)

	require.NotEmpty(t, runs.logs)
	for i, entry := range runs.logs {
		assert.Equal(t, i+1, entry.Seq, entry.Message)
		assert.Equal(t, fixed(), entry.CreatedAt)
	}
}
