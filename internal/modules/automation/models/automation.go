package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Automation is the stored definition of an automation. Trigger, Conditions
// and Actions hold the raw JSON; they are decoded and validated on save.
type Automation struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	TableID     string         `json:"table_id" gorm:"type:varchar(255);index"`
	TriggerType string         `json:"trigger_type" gorm:"type:varchar(50);not null;index"` // row_created, row_updated, schedule, webhook, ...
	Trigger     datatypes.JSON `json:"trigger" gorm:"type:jsonb;not null"`
	Conditions  datatypes.JSON `json:"conditions" gorm:"type:jsonb"`
	Actions     datatypes.JSON `json:"actions" gorm:"type:jsonb;not null"`
	Enabled     bool           `json:"enabled" gorm:"not null;index"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Automation
func (Automation) TableName() string {
	return "automations"
}

func (a *Automation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AutomationRun represents a single execution of an automation
type AutomationRun struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AutomationID uuid.UUID      `json:"automation_id" gorm:"type:uuid;not null;index"`
	Status       string         `json:"status" gorm:"type:varchar(20);not null;index"` // running, completed, failed, stopped
	Context      datatypes.JSON `json:"context" gorm:"type:jsonb"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt    time.Time      `json:"started_at" gorm:"not null;index:,sort:desc"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	DurationMs   int64          `json:"duration_ms,omitempty"`
}

// TableName specifies the table name for AutomationRun
func (AutomationRun) TableName() string {
	return "automation_runs"
}

func (r *AutomationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// AutomationLog is an append-only log line of a run
type AutomationLog struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AutomationID uuid.UUID      `json:"automation_id" gorm:"type:uuid;not null;index"`
	RunID        uuid.UUID      `json:"run_id" gorm:"type:uuid;not null;index"`
	Level        string         `json:"level" gorm:"type:varchar(20);not null"` // info, warning, error
	Message      string         `json:"message" gorm:"type:text;not null"`
	Data         datatypes.JSON `json:"data,omitempty" gorm:"type:jsonb"`
	Seq          int            `json:"seq" gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;index"`
}

// TableName specifies the table name for AutomationLog
func (AutomationLog) TableName() string {
	return "automation_logs"
}

func (l *AutomationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// All lists the models for AutoMigrate
func All() []interface{} {
	return []interface{}{&Automation{}, &AutomationRun{}, &AutomationLog{}}
}
