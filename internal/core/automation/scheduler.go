package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ScheduleSource lists schedule-triggered automations and their history
type ScheduleSource interface {
	ScheduledAutomations(ctx context.Context) ([]*Automation, error)
	LastCompletedRunAt(ctx context.Context, automationID string) (*time.Time, error)
}

// TickFailure is one automation that failed during a sweep
type TickFailure struct {
	AutomationID string `json:"automation_id"`
	Error        string `json:"error"`
}

// TickReport summarises one scheduler pass
type TickReport struct {
	StartedAt time.Time     `json:"started_at"`
	Skipped   bool          `json:"skipped,omitempty"`
	Checked   int           `json:"checked"`
	Ran       []string      `json:"ran"`
	Failures  []TickFailure `json:"failures,omitempty"`
}

// Scheduler runs due schedule-triggered automations. Tick is safe to call
// on any cadence; a call overlapping a running sweep is skipped.
type Scheduler struct {
	source ScheduleSource
	runner Runner
	now    func() time.Time
	log    zerolog.Logger
	mu     sync.Mutex
}

// NewScheduler creates a new scheduler
func NewScheduler(source ScheduleSource, runner Runner, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{source: source, runner: runner, now: now, log: log.Logger}
}

// Tick runs one sweep synchronously. Errors are collected in the report.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	report := TickReport{StartedAt: s.now(), Ran: []string{}}
	if !s.mu.TryLock() {
		report.Skipped = true
		s.log.Warn().Msg("⚠️ Scheduler sweep already running, skipping tick")
		return report
	}
	defer s.mu.Unlock()

	automations, err := s.source.ScheduledAutomations(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("❌ Failed to load scheduled automations")
		report.Failures = append(report.Failures, TickFailure{Error: err.Error()})
		return report
	}

	for _, a := range automations {
		trig, ok := a.Trigger.(ScheduleTrigger)
		if !ok || !a.Enabled {
			continue
		}
		report.Checked++

		lastRun, err := s.source.LastCompletedRunAt(ctx, a.ID)
		if err != nil {
			report.Failures = append(report.Failures, TickFailure{AutomationID: a.ID, Error: err.Error()})
			continue
		}
		if !trig.Schedule.Due(lastRun, s.now()) {
			continue
		}

		if err := s.runOne(ctx, a); err != nil {
			s.log.Error().Err(err).Str("automation_id", a.ID).Msg("❌ Scheduled automation failed")
			report.Failures = append(report.Failures, TickFailure{AutomationID: a.ID, Error: err.Error()})
			continue
		}
		report.Ran = append(report.Ran, a.ID)
	}

	if len(report.Ran) > 0 || len(report.Failures) > 0 {
		s.log.Info().Int("checked", report.Checked).Int("ran", len(report.Ran)).Int("failed", len(report.Failures)).Msg("⏰ Scheduler sweep finished")
	}
	return report
}

// runOne isolates panics so one automation cannot end the sweep
func (s *Scheduler) runOne(ctx context.Context, a *Automation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	run, err := s.runner.Run(ctx, a, Event{Kind: EventSchedule, TableID: a.TableID})
	if err != nil {
		return err
	}
	if run != nil && run.Status == RunFailed {
		return fmt.Errorf("run %s failed: %s", run.ID, run.Error)
	}
	return nil
}

// CronDriver invokes Scheduler.Tick on a cron spec
type CronDriver struct {
	cron      *cron.Cron
	scheduler *Scheduler
	spec      string
	entry     cron.EntryID
	mu        sync.Mutex
}

// NewCronDriver accepts 5-field, 6-field (with seconds) and @every specs
func NewCronDriver(s *Scheduler, spec string) *CronDriver {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronDriver{
		cron:      cron.New(cron.WithParser(parser)),
		scheduler: s,
		spec:      spec,
	}
}

// Start registers the tick job and starts the cron loop
func (d *CronDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entry != 0 {
		d.cron.Remove(d.entry)
	}
	entry, err := d.cron.AddFunc(d.spec, func() {
		d.scheduler.Tick(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to add scheduler cron job: %w", err)
	}
	d.entry = entry

	log.Info().Str("spec", d.spec).Msg("⏰ Starting automation scheduler...")
	d.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish
func (d *CronDriver) Stop() {
	log.Info().Msg("⏰ Stopping automation scheduler...")
	<-d.cron.Stop().Done()
	log.Info().Msg("✅ Automation scheduler stopped")
}

// Next returns the next planned tick, or the zero time when not started
func (d *CronDriver) Next() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entry == 0 {
		return time.Time{}
	}
	return d.cron.Entry(d.entry).Next
}
