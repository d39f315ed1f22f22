package automation

import (
	"encoding/json"
	"fmt"
)

// ActionType discriminates action configurations
type ActionType string

const (
	ActionUpdateRecord  ActionType = "update_record"
	ActionCreateRecord  ActionType = "create_record"
	ActionDeleteRecord  ActionType = "delete_record"
	ActionSendEmail     ActionType = "send_email"
	ActionCallWebhook   ActionType = "call_webhook"
	ActionRunScript     ActionType = "run_script"
	ActionDelay         ActionType = "delay"
	ActionLogMessage    ActionType = "log_message"
	ActionStopExecution ActionType = "stop_execution"
	ActionGenerateText  ActionType = "generate_text"
)

// Action is implemented by exactly the *...Action structs below
type Action interface {
	Type() ActionType
	ActionID() string
	action()
}

// Base carries the fields every action shares
type Base struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (b Base) ActionID() string { return b.ID }

// UpdateRecordAction writes Fields to a record. TableID and RecordID
// default to the triggering record.
type UpdateRecordAction struct {
	Base
	TableID  string                 `json:"table_id,omitempty"`
	RecordID string                 `json:"record_id,omitempty"`
	Fields   map[string]interface{} `json:"fields"`
}

type CreateRecordAction struct {
	Base
	TableID string                 `json:"table_id,omitempty"`
	Fields  map[string]interface{} `json:"fields"`
}

type DeleteRecordAction struct {
	Base
	TableID  string `json:"table_id,omitempty"`
	RecordID string `json:"record_id,omitempty"`
}

// SendEmailAction only renders the message; delivery belongs to another service
type SendEmailAction struct {
	Base
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type CallWebhookAction struct {
	Base
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

// RunScriptAction evaluates Script as a formula over trigger data and variables
type RunScriptAction struct {
	Base
	Script string `json:"script"`
}

// DelayAction waits for Duration, Seconds or until Until, whichever is set first
type DelayAction struct {
	Base
	Duration string  `json:"duration,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
	Until    string  `json:"until,omitempty"`
}

type LogMessageAction struct {
	Base
	Message string   `json:"message"`
	Level   LogLevel `json:"level,omitempty"`
}

type StopExecutionAction struct {
	Base
	Reason string `json:"reason,omitempty"`
}

type GenerateTextAction struct {
	Base
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}

func (*UpdateRecordAction) Type() ActionType  { return ActionUpdateRecord }
func (*CreateRecordAction) Type() ActionType  { return ActionCreateRecord }
func (*DeleteRecordAction) Type() ActionType  { return ActionDeleteRecord }
func (*SendEmailAction) Type() ActionType     { return ActionSendEmail }
func (*CallWebhookAction) Type() ActionType   { return ActionCallWebhook }
func (*RunScriptAction) Type() ActionType     { return ActionRunScript }
func (*DelayAction) Type() ActionType         { return ActionDelay }
func (*LogMessageAction) Type() ActionType    { return ActionLogMessage }
func (*StopExecutionAction) Type() ActionType { return ActionStopExecution }
func (*GenerateTextAction) Type() ActionType  { return ActionGenerateText }

func (*UpdateRecordAction) action()  {}
func (*CreateRecordAction) action()  {}
func (*DeleteRecordAction) action()  {}
func (*SendEmailAction) action()     {}
func (*CallWebhookAction) action()   {}
func (*RunScriptAction) action()     {}
func (*DelayAction) action()         {}
func (*LogMessageAction) action()    {}
func (*StopExecutionAction) action() {}
func (*GenerateTextAction) action()  {}

// DecodeAction decodes an action config of the form {"type": "...", ...}
func DecodeAction(data []byte) (Action, error) {
	var probe struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	var a Action
	switch probe.Type {
	case ActionUpdateRecord:
		a = &UpdateRecordAction{}
	case ActionCreateRecord:
		a = &CreateRecordAction{}
	case ActionDeleteRecord:
		a = &DeleteRecordAction{}
	case ActionSendEmail:
		a = &SendEmailAction{}
	case ActionCallWebhook:
		a = &CallWebhookAction{}
	case ActionRunScript:
		a = &RunScriptAction{}
	case ActionDelay:
		a = &DelayAction{}
	case ActionLogMessage:
		a = &LogMessageAction{}
	case ActionStopExecution:
		a = &StopExecutionAction{}
	case ActionGenerateText:
		a = &GenerateTextAction{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, probe.Type)
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("decode %s action: %w", probe.Type, err)
	}
	return a, nil
}

// EncodeAction is the inverse of DecodeAction
func EncodeAction(a Action) ([]byte, error) {
	return marshalTagged(string(a.Type()), a)
}
