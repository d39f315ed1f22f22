package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

// RecordEvent is the wire form of a row change, both in NOTIFY payloads
// and in the record event HTTP endpoint.
type RecordEvent struct {
	Op       string                 `json:"op" example:"UPDATE"`
	TableID  string                 `json:"table_id" example:"tasks"`
	RecordID string                 `json:"record_id" example:"4f0c..."`
	Old      map[string]interface{} `json:"old,omitempty"`
	New      map[string]interface{} `json:"new,omitempty"`
}

// ToEvent maps the operation onto an automation event kind. Both SQL verbs
// (INSERT/UPDATE/DELETE) and event names (created/updated/deleted) are accepted.
func (r RecordEvent) ToEvent() (automation.Event, error) {
	var kind automation.EventKind
	switch strings.ToLower(strings.TrimSpace(r.Op)) {
	case "insert", "created", "create":
		kind = automation.EventCreated
	case "update", "updated":
		kind = automation.EventUpdated
	case "delete", "deleted":
		kind = automation.EventDeleted
	default:
		return automation.Event{}, fmt.Errorf("unknown record event op %q", r.Op)
	}
	if r.TableID == "" {
		return automation.Event{}, fmt.Errorf("record event is missing table_id")
	}

	ev := automation.Event{
		Kind:     kind,
		TableID:  r.TableID,
		RecordID: r.RecordID,
		Old:      formula.Row(r.Old),
		New:      formula.Row(r.New),
	}
	if ev.RecordID == "" {
		ev.RecordID = recordID(r.New, r.Old)
	}
	return ev, nil
}

func recordID(rows ...map[string]interface{}) string {
	for _, row := range rows {
		if id, ok := row["id"]; ok && id != nil {
			return fmt.Sprint(id)
		}
	}
	return ""
}

// ParsePayload decodes a NOTIFY payload into an automation event
func ParsePayload(payload string) (automation.Event, error) {
	var r RecordEvent
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return automation.Event{}, fmt.Errorf("decode record event: %w", err)
	}
	return r.ToEvent()
}
