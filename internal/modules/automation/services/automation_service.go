package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/export"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/repositories"
)

var (
	ErrAutomationNotFound = errors.New("automation not found")
	ErrRunNotFound        = errors.New("automation run not found")
	ErrInvalidAutomation  = errors.New("invalid automation")
	ErrAutomationDisabled = errors.New("automation is disabled")
	ErrTriggerMismatch    = errors.New("automation trigger does not accept this invocation")
)

// recordTriggerTypes are the trigger types fed by record events
var recordTriggerTypes = []string{
	string(automation.TriggerRowCreated),
	string(automation.TriggerRowUpdated),
	string(automation.TriggerRowDeleted),
	string(automation.TriggerCondition),
}

// CreateAutomationRequest is the body of POST /automations
type CreateAutomationRequest struct {
	Name        string          `json:"name" example:"Notify on done"`
	Description string          `json:"description"`
	TableID     string          `json:"table_id" example:"tasks"`
	Trigger     json.RawMessage `json:"trigger" swaggertype:"object"`
	Conditions  json.RawMessage `json:"conditions,omitempty" swaggertype:"object"`
	Actions     json.RawMessage `json:"actions" swaggertype:"array,object"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// UpdateAutomationRequest is the body of PUT /automations/:id. Absent
// fields are left unchanged.
type UpdateAutomationRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	TableID     *string         `json:"table_id,omitempty"`
	Trigger     json.RawMessage `json:"trigger,omitempty" swaggertype:"object"`
	Conditions  json.RawMessage `json:"conditions,omitempty" swaggertype:"object"`
	Actions     json.RawMessage `json:"actions,omitempty" swaggertype:"array,object"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// AutomationService loads, validates, dispatches and schedules automations
type AutomationService struct {
	repo      repositories.AutomationRepo
	runs      repositories.RunRepo
	runner    automation.Runner
	scheduler *automation.Scheduler
	now       func() time.Time
	log       zerolog.Logger
}

// NewAutomationService creates a new automation service. runner is
// normally an *automation.Engine built over runs.
func NewAutomationService(repo repositories.AutomationRepo, runs repositories.RunRepo, runner automation.Runner, now func() time.Time) *AutomationService {
	if now == nil {
		now = time.Now
	}
	s := &AutomationService{
		repo:   repo,
		runs:   runs,
		runner: runner,
		now:    now,
		log:    log.With().Str("component", "automation_service").Logger(),
	}
	s.scheduler = automation.NewScheduler(s, runner, now)
	return s
}

// Scheduler returns the scheduler sweeping this service's automations
func (s *AutomationService) Scheduler() *automation.Scheduler {
	return s.scheduler
}

// Load decodes a stored automation. The trigger, conditions and pipeline
// shapes are decided here, once.
func Load(m *models.Automation) (*automation.Automation, error) {
	trig, err := automation.DecodeTrigger(m.Trigger)
	if err != nil {
		return nil, fmt.Errorf("%w: trigger: %v", ErrInvalidAutomation, err)
	}

	var conds *automation.Conditions
	if raw := bytes.TrimSpace(m.Conditions); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		conds = &automation.Conditions{}
		if err := json.Unmarshal(raw, conds); err != nil {
			return nil, fmt.Errorf("%w: conditions: %v", ErrInvalidAutomation, err)
		}
	}

	pipeline, err := automation.DecodePipeline(m.Actions)
	if err != nil {
		return nil, fmt.Errorf("%w: actions: %v", ErrInvalidAutomation, err)
	}

	return &automation.Automation{
		ID:         m.ID.String(),
		Name:       m.Name,
		TableID:    m.TableID,
		Enabled:    m.Enabled,
		Trigger:    trig,
		Conditions: conds,
		Pipeline:   pipeline,
	}, nil
}

// validate decodes m and checks the parts that decoding alone cannot
func validate(m *models.Automation) (*automation.Automation, error) {
	if strings.TrimSpace(m.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAutomation)
	}
	a, err := Load(m)
	if err != nil {
		return nil, err
	}
	if a.Conditions != nil && strings.TrimSpace(a.Conditions.Formula) != "" {
		if _, err := formula.Compile(a.Conditions.Formula); err != nil {
			return nil, fmt.Errorf("%w: conditions: %v", ErrInvalidAutomation, err)
		}
	}
	if automation.Len(a.Pipeline) == 0 {
		return nil, fmt.Errorf("%w: at least one action is required", ErrInvalidAutomation)
	}
	m.TriggerType = string(a.Trigger.Type())
	return a, nil
}

// CreateAutomation validates and stores a new automation
func (s *AutomationService) CreateAutomation(ctx context.Context, req CreateAutomationRequest) (*models.Automation, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	m := &models.Automation{
		Name:        req.Name,
		Description: req.Description,
		TableID:     req.TableID,
		Trigger:     datatypes.JSON(req.Trigger),
		Conditions:  datatypes.JSON(req.Conditions),
		Actions:     datatypes.JSON(req.Actions),
		Enabled:     enabled,
	}
	if _, err := validate(m); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create automation: %w", err)
	}

	s.log.Info().Str("automation_id", m.ID.String()).Str("trigger_type", m.TriggerType).Msgf("✅ Automation created: %s", m.Name)
	return m, nil
}

// ListAutomations lists automations, optionally for one table
func (s *AutomationService) ListAutomations(ctx context.Context, tableID string) ([]models.Automation, error) {
	return s.repo.List(ctx, tableID)
}

// GetAutomation retrieves an automation by ID
func (s *AutomationService) GetAutomation(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	m, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAutomationNotFound
	}
	return m, err
}

// UpdateAutomation applies the present fields and revalidates
func (s *AutomationService) UpdateAutomation(ctx context.Context, id uuid.UUID, req UpdateAutomationRequest) (*models.Automation, error) {
	m, err := s.GetAutomation(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.TableID != nil {
		m.TableID = *req.TableID
	}
	if req.Trigger != nil {
		m.Trigger = datatypes.JSON(req.Trigger)
	}
	if req.Conditions != nil {
		m.Conditions = datatypes.JSON(req.Conditions)
	}
	if req.Actions != nil {
		m.Actions = datatypes.JSON(req.Actions)
	}
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}

	if _, err := validate(m); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to update automation: %w", err)
	}

	s.log.Info().Str("automation_id", m.ID.String()).Msgf("✅ Automation updated: %s", m.Name)
	return m, nil
}

// DeleteAutomation removes an automation with its history
func (s *AutomationService) DeleteAutomation(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAutomationNotFound
		}
		return fmt.Errorf("failed to delete automation: %w", err)
	}
	s.log.Info().Str("automation_id", id.String()).Msg("✅ Automation deleted")
	return nil
}

func (s *AutomationService) load(ctx context.Context, id uuid.UUID) (*automation.Automation, error) {
	m, err := s.GetAutomation(ctx, id)
	if err != nil {
		return nil, err
	}
	return Load(m)
}

// RunManual runs an automation now, whatever its trigger type. Disabled
// automations can be run this way to test them.
func (s *AutomationService) RunManual(ctx context.Context, id uuid.UUID, payload map[string]interface{}) (*automation.Run, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := automation.Event{Kind: automation.EventManual, TableID: a.TableID, Payload: payload}
	if recordID, ok := payload["record_id"].(string); ok {
		ev.RecordID = recordID
	}
	return s.runner.Run(ctx, a, ev)
}

// Webhook runs an enabled webhook-triggered automation with the payload
// as trigger data.
func (s *AutomationService) Webhook(ctx context.Context, id uuid.UUID, payload map[string]interface{}) (*automation.Run, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Enabled {
		return nil, ErrAutomationDisabled
	}
	if a.Trigger.Type() != automation.TriggerWebhook {
		return nil, fmt.Errorf("%w: trigger is %s", ErrTriggerMismatch, a.Trigger.Type())
	}
	return s.runner.Run(ctx, a, automation.Event{Kind: automation.EventWebhook, TableID: a.TableID, Payload: payload})
}

// DispatchEvent runs every enabled automation listening to ev. Runs execute
// concurrently; DispatchEvent waits for all of them. Failed runs are
// reported through their status, not the returned error.
func (s *AutomationService) DispatchEvent(ctx context.Context, ev automation.Event) ([]*automation.Run, error) {
	stored, err := s.repo.FindEnabled(ctx, recordTriggerTypes...)
	if err != nil {
		return nil, fmt.Errorf("failed to load automations: %w", err)
	}

	var targets []*automation.Automation
	for i := range stored {
		a, err := Load(&stored[i])
		if err != nil {
			s.log.Warn().Err(err).Str("automation_id", stored[i].ID.String()).Msg("⚠️ Skipping invalid automation")
			continue
		}
		if automation.Listens(a, ev) {
			targets = append(targets, a)
		}
	}

	runs := make([]*automation.Run, len(targets))
	var wg sync.WaitGroup
	for i, a := range targets {
		wg.Add(1)
		go func(i int, a *automation.Automation) {
			defer wg.Done()
			run, err := s.runner.Run(ctx, a, ev)
			if err != nil {
				s.log.Error().Err(err).Str("automation_id", a.ID).Msg("❌ Automation run failed")
			}
			runs[i] = run
		}(i, a)
	}
	wg.Wait()

	out := runs[:0]
	for _, run := range runs {
		if run != nil {
			out = append(out, run)
		}
	}
	if len(out) > 0 {
		s.log.Info().Str("table_id", ev.TableID).Str("kind", string(ev.Kind)).Int("runs", len(out)).Msg("📝 Record event dispatched")
	}
	return out, nil
}

// Tick runs one scheduler sweep
func (s *AutomationService) Tick(ctx context.Context) automation.TickReport {
	return s.scheduler.Tick(ctx)
}

// ScheduledAutomations implements automation.ScheduleSource
func (s *AutomationService) ScheduledAutomations(ctx context.Context) ([]*automation.Automation, error) {
	stored, err := s.repo.FindEnabled(ctx, string(automation.TriggerSchedule))
	if err != nil {
		return nil, err
	}
	out := make([]*automation.Automation, 0, len(stored))
	for i := range stored {
		a, err := Load(&stored[i])
		if err != nil {
			s.log.Warn().Err(err).Str("automation_id", stored[i].ID.String()).Msg("⚠️ Skipping invalid scheduled automation")
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// LastCompletedRunAt implements automation.ScheduleSource
func (s *AutomationService) LastCompletedRunAt(ctx context.Context, automationID string) (*time.Time, error) {
	return s.runs.LastCompletedRunAt(ctx, automationID)
}

// GetRuns lists the latest runs of an automation
func (s *AutomationService) GetRuns(ctx context.Context, automationID uuid.UUID, limit int) ([]models.AutomationRun, error) {
	if _, err := s.GetAutomation(ctx, automationID); err != nil {
		return nil, err
	}
	return s.runs.FindRunsByAutomationID(ctx, automationID, limit)
}

// GetRunLogs lists the log lines of one run in order
func (s *AutomationService) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]models.AutomationLog, error) {
	if _, err := s.runs.FindRunByID(ctx, runID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return s.runs.FindLogsByRunID(ctx, runID)
}

// GetAutomationLogs lists the latest log lines across runs of an automation
func (s *AutomationService) GetAutomationLogs(ctx context.Context, automationID uuid.UUID, limit int) ([]models.AutomationLog, error) {
	if _, err := s.GetAutomation(ctx, automationID); err != nil {
		return nil, err
	}
	return s.runs.FindLogsByAutomationID(ctx, automationID, limit)
}

// RunHistoryTable lays out the latest runs of an automation for export
func (s *AutomationService) RunHistoryTable(ctx context.Context, automationID uuid.UUID, limit int) (*export.Table, error) {
	m, err := s.GetAutomation(ctx, automationID)
	if err != nil {
		return nil, err
	}
	runs, err := s.runs.FindRunsByAutomationID(ctx, automationID, limit)
	if err != nil {
		return nil, err
	}

	table := &export.Table{
		Title:     fmt.Sprintf("Run history: %s", m.Name),
		Subtitle:  fmt.Sprintf("Trigger %s on table %s", m.TriggerType, orDash(m.TableID)),
		CreatedAt: s.now(),
		Headers:   []string{"Run ID", "Status", "Started", "Completed", "Duration (ms)", "Error"},
		Rows:      make([][]interface{}, 0, len(runs)),
	}
	for _, r := range runs {
		table.Rows = append(table.Rows, []interface{}{
			r.ID.String(), r.Status, r.StartedAt, r.CompletedAt, r.DurationMs, r.ErrorMessage,
		})
	}
	return table, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
