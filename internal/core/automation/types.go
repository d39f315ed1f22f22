package automation

import (
	"errors"
	"time"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

var (
	ErrUnknownTrigger  = errors.New("unknown trigger type")
	ErrUnknownAction   = errors.New("unknown action type")
	ErrInvalidPipeline = errors.New("invalid action pipeline")
)

// Automation is a decoded, validated automation definition.
// Trigger, Conditions and Pipeline are decided once at load time.
type Automation struct {
	ID         string
	Name       string
	TableID    string
	Enabled    bool
	Trigger    Trigger
	Conditions *Conditions
	Pipeline   Pipeline
}

// EventKind is the kind of incoming event an automation is evaluated against
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventSchedule EventKind = "schedule"
	EventWebhook  EventKind = "webhook"
	EventManual   EventKind = "manual"
)

// Event is what caused an automation to be considered.
// Old is set for updates and deletes, New for creates and updates.
type Event struct {
	Kind     EventKind              `json:"kind"`
	TableID  string                 `json:"table_id,omitempty"`
	RecordID string                 `json:"record_id,omitempty"`
	Old      formula.Row            `json:"old,omitempty"`
	New      formula.Row            `json:"new,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// Context is threaded through one run. It is treated as immutable: every
// With* method returns a copy.
type Context struct {
	AutomationID string                 `json:"automation_id"`
	TriggerType  TriggerType            `json:"trigger_type"`
	TriggerData  map[string]interface{} `json:"trigger_data"`
	TableID      string                 `json:"table_id,omitempty"`
	RecordID     string                 `json:"record_id,omitempty"`
	Variables    map[string]interface{} `json:"variables"`
}

// WithVariable returns a copy of c with key set in Variables
func (c Context) WithVariable(key string, value interface{}) Context {
	vars := make(map[string]interface{}, len(c.Variables)+1)
	for k, v := range c.Variables {
		vars[k] = v
	}
	vars[key] = value
	c.Variables = vars
	return c
}

// WithRecordID returns a copy of c acting on a different record
func (c Context) WithRecordID(id string) Context {
	c.RecordID = id
	return c
}

// Row returns the trigger data as a formula row
func (c Context) Row() formula.Row {
	return formula.Row(c.TriggerData)
}

// RunStatus of an automation run. Only running may transition, and only once.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// IsTerminal reports whether the status is final
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunStopped
}

// Run is one execution attempt of an automation
type Run struct {
	ID           string     `json:"id"`
	AutomationID string     `json:"automation_id"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	Context      Context    `json:"context"`

	logSeq int
}

// LogLevel of a persisted log line
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogEntry is an append-only log line attached to a run
type LogEntry struct {
	AutomationID string      `json:"automation_id"`
	RunID        string      `json:"run_id"`
	Level        LogLevel    `json:"level"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data,omitempty"`
	Seq          int         `json:"seq"` // position within the run, from 1
	CreatedAt    time.Time   `json:"created_at"`
}
