package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/records"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/repositories"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/database"
)

type testEnv struct {
	service *AutomationService
	records *records.MemoryStore
	runs    repositories.RunRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.GORM.AutoMigrate(models.All()...))

	store := records.NewMemoryStore()
	runs := repositories.NewRunRepo(db.GORM)
	engine := automation.NewEngine(runs, store, automation.NewExecutor(store))
	return &testEnv{
		service: NewAutomationService(repositories.NewAutomationRepo(db.GORM), runs, engine, nil),
		records: store,
		runs:    runs,
	}
}

func (e *testEnv) create(t *testing.T, req CreateAutomationRequest) *models.Automation {
	t.Helper()
	if req.Name == "" {
		req.Name = "test automation"
	}
	m, err := e.service.CreateAutomation(context.Background(), req)
	require.NoError(t, err)
	return m
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func boolPtr(b bool) *bool { return &b }

func TestCreateAutomation(t *testing.T) {
	env := newTestEnv(t)

	m := env.create(t, CreateAutomationRequest{
		Name:       "Flag big orders",
		TableID:    "orders",
		Trigger:    raw(`{"type":"row_created"}`),
		Conditions: raw(`"{total} > 100"`),
		Actions:    raw(`[{"type":"update_record","fields":{"flagged":true}}]`),
	})
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, "row_created", m.TriggerType)
	assert.True(t, m.Enabled)

	a, err := Load(m)
	require.NoError(t, err)
	assert.Equal(t, automation.RowCreatedTrigger{}, a.Trigger)
	assert.Equal(t, "{total} > 100", a.Conditions.Formula)
	assert.Equal(t, 1, automation.Len(a.Pipeline))

	list, err := env.service.ListAutomations(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = env.service.ListAutomations(context.Background(), "tasks")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateAutomationValidation(t *testing.T) {
	env := newTestEnv(t)
	actions := raw(`[{"type":"log_message","message":"hi"}]`)

	tests := []struct {
		name string
		req  CreateAutomationRequest
	}{
		{"missing name", CreateAutomationRequest{Name: " ", Trigger: raw(`{"type":"manual"}`), Actions: actions}},
		{"missing trigger", CreateAutomationRequest{Name: "x", Actions: actions}},
		{"unknown trigger", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"sometimes"}`), Actions: actions}},
		{"bad schedule", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"schedule","interval":"day","time":"27:00"}`), Actions: actions}},
		{"bad condition trigger formula", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"condition","formula":"{a} >"}`), Actions: actions}},
		{"bad conditions formula", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"manual"}`), Conditions: raw(`"({a}"`), Actions: actions}},
		{"no actions", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"manual"}`), Actions: raw(`[]`)}},
		{"unknown action", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"manual"}`), Actions: raw(`[{"type":"fax"}]`)}},
		{"mixed pipeline", CreateAutomationRequest{Name: "x", Trigger: raw(`{"type":"manual"}`), Actions: raw(`[{"actions":[]},{"type":"delay"}]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.CreateAutomation(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidAutomation)
		})
	}
}

func TestUpdateAndDeleteAutomation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, CreateAutomationRequest{
		Trigger: raw(`{"type":"manual"}`),
		Actions: raw(`[{"type":"log_message","message":"hi"}]`),
	})

	name := "renamed"
	updated, err := env.service.UpdateAutomation(ctx, m.ID, UpdateAutomationRequest{
		Name:    &name,
		Trigger: raw(`{"type":"webhook"}`),
		Enabled: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "webhook", updated.TriggerType)
	assert.False(t, updated.Enabled)

	_, err = env.service.UpdateAutomation(ctx, m.ID, UpdateAutomationRequest{Actions: raw(`[]`)})
	assert.ErrorIs(t, err, ErrInvalidAutomation)

	_, err = env.service.RunManual(ctx, m.ID, nil)
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteAutomation(ctx, m.ID))
	_, err = env.service.GetAutomation(ctx, m.ID)
	assert.ErrorIs(t, err, ErrAutomationNotFound)
	assert.ErrorIs(t, env.service.DeleteAutomation(ctx, m.ID), ErrAutomationNotFound)

	last, err := env.runs.LastCompletedRunAt(ctx, m.ID.String())
	require.NoError(t, err)
	assert.Nil(t, last, "runs are deleted with the automation")
}

func TestRunManualPersistsRunAndLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, CreateAutomationRequest{
		TableID: "tasks",
		Trigger: raw(`{"type":"row_created"}`),
		Actions: raw(`[
			{"type":"create_record","id":"created","fields":{"title":"{{title}}"}},
			{"type":"log_message","message":"made {{record_id}}"}
		]`),
		Enabled: boolPtr(false),
	})

	run, err := env.service.RunManual(ctx, m.ID, map[string]interface{}{"title": "Write docs"})
	require.NoError(t, err)
	assert.Equal(t, automation.RunCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)

	created, ok := run.Context.Variables["created"].(map[string]interface{})
	require.True(t, ok)
	row, err := env.records.Get(ctx, "tasks", created["record_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Write docs", row["title"])

	runs, err := env.service.GetRuns(ctx, m.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Contains(t, string(runs[0].Context), "Write docs")

	logs, err := env.service.GetRunLogs(ctx, runs[0].ID)
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "made "+created["record_id"].(string))
	assert.Contains(t, messages, "Automation completed: 2 action(s) executed")

	_, err = env.service.GetRunLogs(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = env.service.RunManual(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrAutomationNotFound)
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actions := raw(`[{"type":"log_message","message":"order {{order.id}}"}]`)

	hook := env.create(t, CreateAutomationRequest{Trigger: raw(`{"type":"webhook"}`), Actions: actions})
	manual := env.create(t, CreateAutomationRequest{Trigger: raw(`{"type":"manual"}`), Actions: actions})
	disabled := env.create(t, CreateAutomationRequest{Trigger: raw(`{"type":"webhook"}`), Actions: actions, Enabled: boolPtr(false)})

	run, err := env.service.Webhook(ctx, hook.ID, map[string]interface{}{"order": map[string]interface{}{"id": "o-1"}})
	require.NoError(t, err)
	assert.Equal(t, automation.RunCompleted, run.Status)
	assert.Equal(t, automation.TriggerWebhook, run.Context.TriggerType)

	_, err = env.service.Webhook(ctx, manual.ID, nil)
	assert.ErrorIs(t, err, ErrTriggerMismatch)

	_, err = env.service.Webhook(ctx, disabled.ID, nil)
	assert.ErrorIs(t, err, ErrAutomationDisabled)
}

func TestDispatchEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	markSeen := raw(`[{"type":"update_record","fields":{"seen":true}}]`)

	env.create(t, CreateAutomationRequest{Name: "tasks created", TableID: "tasks", Trigger: raw(`{"type":"row_created"}`), Actions: markSeen})
	env.create(t, CreateAutomationRequest{Name: "any table created", Trigger: raw(`{"type":"row_created"}`), Actions: raw(`[{"type":"log_message","message":"x"}]`)})
	env.create(t, CreateAutomationRequest{Name: "orders created", TableID: "orders", Trigger: raw(`{"type":"row_created"}`), Actions: markSeen})
	env.create(t, CreateAutomationRequest{Name: "tasks deleted", TableID: "tasks", Trigger: raw(`{"type":"row_deleted"}`), Actions: markSeen})
	env.create(t, CreateAutomationRequest{Name: "disabled", TableID: "tasks", Trigger: raw(`{"type":"row_created"}`), Actions: markSeen, Enabled: boolPtr(false)})
	env.create(t, CreateAutomationRequest{Name: "schedule", Trigger: raw(`{"type":"schedule","interval":"hour"}`), Actions: markSeen})

	row, err := env.records.Insert(ctx, "tasks", map[string]interface{}{"title": "a"})
	require.NoError(t, err)
	id := row["id"].(string)

	runs, err := env.service.DispatchEvent(ctx, automation.Event{Kind: automation.EventCreated, TableID: "tasks", RecordID: id, New: row})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, automation.RunCompleted, run.Status)
	}

	got, err := env.records.Get(ctx, "tasks", id)
	require.NoError(t, err)
	assert.Equal(t, true, got["seen"])
}

func TestTickRunsDueSchedules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.create(t, CreateAutomationRequest{
		Trigger: raw(`{"type":"schedule","interval":"hour"}`),
		Actions: raw(`[{"type":"log_message","message":"tick"}]`),
	})
	env.create(t, CreateAutomationRequest{
		Trigger: raw(`{"type":"schedule","interval":"hour"}`),
		Actions: raw(`[{"type":"log_message","message":"off"}]`),
		Enabled: boolPtr(false),
	})

	report := env.service.Tick(ctx)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, []string{m.ID.String()}, report.Ran)
	assert.Empty(t, report.Failures)

	last, err := env.service.LastCompletedRunAt(ctx, m.ID.String())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, time.Now(), *last, time.Minute)

	report = env.service.Tick(ctx)
	assert.Equal(t, 1, report.Checked)
	assert.Empty(t, report.Ran, "an hourly schedule is not due again right away")
}
