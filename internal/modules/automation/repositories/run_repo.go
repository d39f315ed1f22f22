package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
)

// ErrRunFinalized is returned when completing a run that already left running
var ErrRunFinalized = errors.New("automation run already finalized")

// RunRepo persists automation runs and their logs. It implements
// automation.RunStore for the engine.
type RunRepo interface {
	automation.RunStore
	LastCompletedRunAt(ctx context.Context, automationID string) (*time.Time, error)
	FindRunByID(ctx context.Context, id uuid.UUID) (*models.AutomationRun, error)
	FindRunsByAutomationID(ctx context.Context, automationID uuid.UUID, limit int) ([]models.AutomationRun, error)
	FindLogsByRunID(ctx context.Context, runID uuid.UUID) ([]models.AutomationLog, error)
	FindLogsByAutomationID(ctx context.Context, automationID uuid.UUID, limit int) ([]models.AutomationLog, error)
}

type runRepo struct {
	db *gorm.DB
}

// NewRunRepo creates a new run repository
func NewRunRepo(db *gorm.DB) RunRepo {
	return &runRepo{db: db}
}

func parseIDs(ids ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(ids))
	for i, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", s, err)
		}
		out[i] = id
	}
	return out, nil
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func (r *runRepo) CreateRun(ctx context.Context, run *automation.Run) error {
	ids, err := parseIDs(run.ID, run.AutomationID)
	if err != nil {
		return err
	}
	runCtx, err := toJSON(run.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal run context: %w", err)
	}
	return r.db.WithContext(ctx).Create(&models.AutomationRun{
		ID:           ids[0],
		AutomationID: ids[1],
		Status:       string(run.Status),
		Context:      runCtx,
		StartedAt:    run.StartedAt,
	}).Error
}

// CompleteRun writes the terminal state once. A run that is no longer
// running is left untouched and ErrRunFinalized is returned.
func (r *runRepo) CompleteRun(ctx context.Context, run *automation.Run) error {
	ids, err := parseIDs(run.ID)
	if err != nil {
		return err
	}
	runCtx, err := toJSON(run.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal run context: %w", err)
	}

	updates := map[string]interface{}{
		"status":        string(run.Status),
		"context":       runCtx,
		"error_message": run.Error,
		"completed_at":  run.CompletedAt,
	}
	if run.CompletedAt != nil {
		updates["duration_ms"] = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
	}

	res := r.db.WithContext(ctx).Model(&models.AutomationRun{}).
		Where("id = ? AND status = ?", ids[0], string(automation.RunRunning)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunFinalized, run.ID)
	}
	return nil
}

func (r *runRepo) AppendLog(ctx context.Context, entry *automation.LogEntry) error {
	ids, err := parseIDs(entry.AutomationID, entry.RunID)
	if err != nil {
		return err
	}
	data, err := toJSON(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal log data: %w", err)
	}
	return r.db.WithContext(ctx).Create(&models.AutomationLog{
		AutomationID: ids[0],
		RunID:        ids[1],
		Level:        string(entry.Level),
		Message:      entry.Message,
		Data:         data,
		Seq:          entry.Seq,
		CreatedAt:    entry.CreatedAt,
	}).Error
}

// LastCompletedRunAt returns the start of the latest successful run
// (completed or stopped), or nil when there is none.
func (r *runRepo) LastCompletedRunAt(ctx context.Context, automationID string) (*time.Time, error) {
	ids, err := parseIDs(automationID)
	if err != nil {
		return nil, err
	}
	var run models.AutomationRun
	err = r.db.WithContext(ctx).
		Where("automation_id = ? AND status IN ?", ids[0], []string{string(automation.RunCompleted), string(automation.RunStopped)}).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run.StartedAt, nil
}

func (r *runRepo) FindRunByID(ctx context.Context, id uuid.UUID) (*models.AutomationRun, error) {
	var run models.AutomationRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) FindRunsByAutomationID(ctx context.Context, automationID uuid.UUID, limit int) ([]models.AutomationRun, error) {
	var runs []models.AutomationRun
	query := r.db.WithContext(ctx).Where("automation_id = ?", automationID).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

func (r *runRepo) FindLogsByRunID(ctx context.Context, runID uuid.UUID) ([]models.AutomationLog, error) {
	var logs []models.AutomationLog
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("seq ASC").Order("created_at ASC").Find(&logs).Error
	return logs, err
}

func (r *runRepo) FindLogsByAutomationID(ctx context.Context, automationID uuid.UUID, limit int) ([]models.AutomationLog, error) {
	var logs []models.AutomationLog
	query := r.db.WithContext(ctx).Where("automation_id = ?", automationID).Order("created_at DESC").Order("seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&logs).Error
	return logs, err
}
