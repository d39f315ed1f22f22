package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
)

// AutomationRepo interface for automation database operations
type AutomationRepo interface {
	Create(ctx context.Context, a *models.Automation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	List(ctx context.Context, tableID string) ([]models.Automation, error)
	FindEnabled(ctx context.Context, triggerTypes ...string) ([]models.Automation, error)
	Update(ctx context.Context, a *models.Automation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type automationRepo struct {
	db *gorm.DB
}

// NewAutomationRepo creates a new automation repository
func NewAutomationRepo(db *gorm.DB) AutomationRepo {
	return &automationRepo{db: db}
}

func (r *automationRepo) Create(ctx context.Context, a *models.Automation) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *automationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	var a models.Automation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns automations newest first, optionally limited to one table
func (r *automationRepo) List(ctx context.Context, tableID string) ([]models.Automation, error) {
	var automations []models.Automation
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if tableID != "" {
		query = query.Where("table_id = ?", tableID)
	}
	err := query.Find(&automations).Error
	return automations, err
}

func (r *automationRepo) FindEnabled(ctx context.Context, triggerTypes ...string) ([]models.Automation, error) {
	var automations []models.Automation
	query := r.db.WithContext(ctx).Where("enabled = ?", true)
	if len(triggerTypes) > 0 {
		query = query.Where("trigger_type IN ?", triggerTypes)
	}
	err := query.Order("created_at ASC").Find(&automations).Error
	return automations, err
}

func (r *automationRepo) Update(ctx context.Context, a *models.Automation) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// Delete removes the automation together with its runs and logs
func (r *automationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("automation_id = ?", id).Delete(&models.AutomationLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("automation_id = ?", id).Delete(&models.AutomationRun{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Automation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
