package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/filter"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunStore persists runs and their logs
type RunStore interface {
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, run *Run) error
	AppendLog(ctx context.Context, entry *LogEntry) error
}

// Runner executes one automation for one event
type Runner interface {
	Run(ctx context.Context, a *Automation, ev Event) (*Run, error)
}

// Engine orchestrates trigger, conditions and actions for a run
type Engine struct {
	runs       RunStore
	records    RecordStore
	executor   *Executor
	triggers   *TriggerEvaluator
	conditions *ConditionEvaluator
	now        func() time.Time
	newID      func() string
	log        zerolog.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithEngineLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithIDGenerator overrides uuid run ids
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates an engine. records may be nil when no automation needs
// field metadata.
func NewEngine(runs RunStore, records RecordStore, executor *Executor, opts ...EngineOption) *Engine {
	e := &Engine{
		runs:     runs,
		records:  records,
		executor: executor,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		log:      log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	ev := formula.NewEvaluator(formula.WithClock(e.now))
	e.triggers = NewTriggerEvaluator(ev, &e.log)
	e.conditions = NewConditionEvaluator(ev)
	return e
}

type outcome int

const (
	outcomeContinue outcome = iota
	outcomeStop
)

// runState is the value folded over the action list
type runState struct {
	ctx  Context
	logs []LogEntry
}

// apply folds one action result into the run state. Failures are recorded
// and the pipeline continues; only a stop result halts it.
func apply(st runState, index int, action Action, res ActionResult) (runState, outcome) {
	label := fmt.Sprintf("Action %d (%s)", index+1, action.Type())
	st.logs = append(st.logs, res.Logs...)

	if !res.Success {
		st.ctx = st.ctx.WithVariable("last_error", res.Error)
		st.logs = append(st.logs, LogEntry{Level: LevelError, Message: label + " failed: " + res.Error, Data: res.Data})
		return st, outcomeContinue
	}

	st.ctx = st.ctx.WithVariable(fmt.Sprintf("action_%d_result", index), res.Data)
	if id := action.ActionID(); id != "" {
		st.ctx = st.ctx.WithVariable(id, res.Data)
	}
	if res.CreatedRecordID != "" {
		st.ctx = st.ctx.WithRecordID(res.CreatedRecordID)
	}

	if res.Stop {
		return st, outcomeStop
	}
	st.logs = append(st.logs, LogEntry{Level: LevelInfo, Message: label + " completed", Data: res.Data})
	return st, outcomeContinue
}

// Run executes a for ev and returns the finalized run. The returned error
// is non-nil only when the run could not be recorded or ended as failed.
func (e *Engine) Run(ctx context.Context, a *Automation, ev Event) (run *Run, err error) {
	run = &Run{
		ID:           e.newID(),
		AutomationID: a.ID,
		Status:       RunRunning,
		StartedAt:    e.now(),
		Context:      Context{AutomationID: a.ID},
	}
	if err := e.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	logger := e.log.With().Str("automation_id", a.ID).Str("run_id", run.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("automation run panicked: %v", r)
			logger.Error().Msgf("❌ %s", msg)
			e.persistLog(ctx, run, LogEntry{Level: LevelError, Message: msg})
			e.finalize(ctx, run, RunFailed, msg)
			err = fmt.Errorf("%s", msg)
		}
	}()

	if err := e.execute(ctx, a, ev, run, logger); err != nil {
		logger.Error().Err(err).Msg("❌ Automation run failed")
		e.persistLog(ctx, run, LogEntry{Level: LevelError, Message: err.Error()})
		e.finalize(ctx, run, RunFailed, err.Error())
		return run, err
	}
	return run, nil
}

func (e *Engine) execute(ctx context.Context, a *Automation, ev Event, run *Run, logger zerolog.Logger) error {
	if a.Trigger == nil {
		return fmt.Errorf("%w: automation has no trigger", ErrUnknownTrigger)
	}

	fields := e.fields(ctx, a, ev, logger)

	shouldRun, actx := e.triggers.Evaluate(a, ev, fields)
	run.Context = actx
	if !shouldRun {
		e.persistLog(ctx, run, LogEntry{Level: LevelInfo, Message: fmt.Sprintf("Trigger %s did not fire for %s event", a.Trigger.Type(), ev.Kind)})
		e.finalize(ctx, run, RunCompleted, "")
		return nil
	}

	if !a.Conditions.IsZero() {
		ok, condErr := e.conditions.Evaluate(a.Conditions, actx.Row(), fields)
		if condErr != nil {
			e.persistLog(ctx, run, LogEntry{Level: LevelError, Message: condErr.Error()})
		}
		if !ok {
			e.persistLog(ctx, run, LogEntry{Level: LevelInfo, Message: "Conditions not met, skipping actions"})
			e.finalize(ctx, run, RunCompleted, "")
			return nil
		}
	}

	actions, matched := e.selectActions(a.Pipeline, actx, fields)
	if !matched {
		e.persistLog(ctx, run, LogEntry{Level: LevelInfo, Message: "No action group matched"})
		e.finalize(ctx, run, RunCompleted, "")
		return nil
	}

	st := runState{ctx: actx}
	for i, action := range actions {
		res := e.executor.Execute(ctx, action, st.ctx)

		var out outcome
		before := len(st.logs)
		st, out = apply(st, i, action, res)
		run.Context = st.ctx
		for _, entry := range st.logs[before:] {
			e.persistLog(ctx, run, entry)
		}

		if out == outcomeStop {
			logger.Info().Int("action", i+1).Msg("⏹️ Automation stopped")
			e.finalize(ctx, run, RunStopped, "")
			return nil
		}
	}

	e.persistLog(ctx, run, LogEntry{Level: LevelInfo, Message: fmt.Sprintf("Automation completed: %d action(s) executed", len(actions))})
	e.finalize(ctx, run, RunCompleted, "")
	return nil
}

// selectActions resolves the pipeline shape. A grouped pipeline yields the
// first group whose condition passes.
func (e *Engine) selectActions(p Pipeline, actx Context, fields []formula.FieldMeta) ([]Action, bool) {
	switch t := p.(type) {
	case FlatPipeline:
		return t, true
	case GroupedPipeline:
		for _, g := range t {
			if g.Condition.IsEmpty() || filter.Evaluate(g.Condition, actx.Row(), fields) {
				return g.Actions, true
			}
		}
		return nil, false
	case nil:
		return nil, true
	}
	panic(fmt.Sprintf("%v: %T", ErrInvalidPipeline, p))
}

func (e *Engine) fields(ctx context.Context, a *Automation, ev Event, logger zerolog.Logger) []formula.FieldMeta {
	tableID := ev.TableID
	if tableID == "" {
		tableID = a.TableID
	}
	if tableID == "" || e.records == nil {
		return nil
	}
	fields, err := e.records.ListFields(ctx, tableID)
	if err != nil {
		logger.Warn().Err(err).Str("table_id", tableID).Msg("⚠️ Field metadata unavailable")
		return nil
	}
	return fields
}

func (e *Engine) persistLog(ctx context.Context, run *Run, entry LogEntry) {
	entry.AutomationID = run.AutomationID
	entry.RunID = run.ID
	run.logSeq++
	entry.Seq = run.logSeq
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.now()
	}
	if err := e.runs.AppendLog(ctx, &entry); err != nil {
		e.log.Warn().Err(err).Str("run_id", run.ID).Msg("⚠️ Failed to persist automation log")
	}
}

// finalize sets the terminal status once; later calls are ignored
func (e *Engine) finalize(ctx context.Context, run *Run, status RunStatus, errMsg string) {
	if run.Status.IsTerminal() {
		return
	}
	completed := e.now()
	run.Status = status
	run.Error = errMsg
	run.CompletedAt = &completed
	if err := e.runs.CompleteRun(ctx, run); err != nil {
		e.log.Error().Err(err).Str("run_id", run.ID).Msg("❌ Failed to finalize automation run")
	}
}
