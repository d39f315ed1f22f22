package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

const (
	DefaultActionTimeout  = 30 * time.Second
	DefaultWebhookTimeout = 15 * time.Second

	maxWebhookResponse = 1 << 20
)

// RecordStore is the tabular data store actions operate on
type RecordStore interface {
	Get(ctx context.Context, tableID, recordID string) (formula.Row, error)
	Insert(ctx context.Context, tableID string, row formula.Row) (formula.Row, error)
	Update(ctx context.Context, tableID, recordID string, fields formula.Row) error
	Delete(ctx context.Context, tableID, recordID string) error
	ListFields(ctx context.Context, tableID string) ([]formula.FieldMeta, error)
}

// TextGenerator produces a completion for generate_text actions
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Mailer delivers send_email actions. Without one, send_email only records
// what would have been sent.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// ActionResult is the in-band outcome of one action
type ActionResult struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Logs    []LogEntry             `json:"logs,omitempty"`
	// Stop asks the engine to halt the pipeline
	Stop bool `json:"stop,omitempty"`
	// CreatedRecordID becomes the context record for later actions
	CreatedRecordID string `json:"created_record_id,omitempty"`
}

func failure(format string, args ...interface{}) ActionResult {
	return ActionResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func success(data map[string]interface{}) ActionResult {
	return ActionResult{Success: true, Data: data}
}

func (r ActionResult) withLog(level LogLevel, msg string) ActionResult {
	r.Logs = append(r.Logs, LogEntry{Level: level, Message: msg})
	return r
}

// Executor runs single actions under a hard timeout
type Executor struct {
	records   RecordStore
	http      *http.Client
	generator TextGenerator
	mailer    Mailer
	formula   *formula.Evaluator
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) { e.http = c }
}

func WithTextGenerator(g TextGenerator) ExecutorOption {
	return func(e *Executor) { e.generator = g }
}

func WithMailer(m Mailer) ExecutorOption {
	return func(e *Executor) { e.mailer = m }
}

// WithActionTimeout overrides the 30s per-action limit
func WithActionTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

func WithExecutorLogger(l zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// NewExecutor creates an action executor backed by records
func NewExecutor(records RecordStore, opts ...ExecutorOption) *Executor {
	e := &Executor{
		records: records,
		http:    &http.Client{Timeout: DefaultWebhookTimeout},
		timeout: DefaultActionTimeout,
		now:     time.Now,
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.formula = formula.NewEvaluator(formula.WithClock(e.now))
	return e
}

// Timeout returns the per-action limit
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs one action. It always returns within the action timeout; a
// timed-out action is a failure.
func (e *Executor) Execute(ctx context.Context, action Action, actx Context) ActionResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan ActionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- failure("action %s panicked: %v", action.Type(), r)
			}
		}()
		done <- e.dispatch(ctx, action, actx)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failure("action %s timed out after %s", action.Type(), e.timeout)
		}
		return failure("action %s cancelled: %v", action.Type(), ctx.Err())
	}
}

func (e *Executor) dispatch(ctx context.Context, action Action, actx Context) ActionResult {
	e.log.Debug().Str("automation_id", actx.AutomationID).Str("action", string(action.Type())).Msg("🔧 Executing action")

	switch a := action.(type) {
	case *UpdateRecordAction:
		return e.updateRecord(ctx, a, actx)
	case *CreateRecordAction:
		return e.createRecord(ctx, a, actx)
	case *DeleteRecordAction:
		return e.deleteRecord(ctx, a, actx)
	case *SendEmailAction:
		return e.sendEmail(ctx, a, actx)
	case *CallWebhookAction:
		return e.callWebhook(ctx, a, actx)
	case *RunScriptAction:
		return e.runScript(a, actx)
	case *DelayAction:
		return e.delay(ctx, a)
	case *LogMessageAction:
		return e.logMessage(a, actx)
	case *StopExecutionAction:
		return e.stopExecution(a, actx)
	case *GenerateTextAction:
		return e.generateText(ctx, a, actx)
	}
	return failure("%v: %T", ErrUnknownAction, action)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// computeFields substitutes variables and evaluates "=" formulas against current
func (e *Executor) computeFields(fields map[string]interface{}, actx Context, current formula.Row, meta []formula.FieldMeta) formula.Row {
	out := make(formula.Row, len(fields))
	for name, raw := range fields {
		v := Substitute(raw, actx)
		if s, ok := v.(string); ok && strings.HasPrefix(s, "=") {
			v = e.fieldFormula(name, s, current, meta)
		}
		out[name] = v
	}
	return out
}

// fieldFormula evaluates an "=" value. A formula that fails to compile or
// faults during evaluation is written as the literal string.
func (e *Executor) fieldFormula(name, src string, current formula.Row, meta []formula.FieldMeta) (v interface{}) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("field", name).Interface("panic", r).Msg("⚠️ Field formula failed, writing literal value")
			v = src
		}
	}()

	root, err := formula.Compile(src)
	if err != nil {
		e.log.Warn().Err(err).Str("field", name).Msg("⚠️ Field formula invalid, writing literal value")
		return src
	}
	v = e.formula.Evaluate(root, current, meta)
	if sentinel, ok := v.(formula.Sentinel); ok {
		v = string(sentinel)
	}
	return v
}

func hasFormula(fields map[string]interface{}) bool {
	for _, v := range fields {
		if s, ok := v.(string); ok && strings.HasPrefix(strings.TrimSpace(s), "=") {
			return true
		}
	}
	return false
}

func (e *Executor) updateRecord(ctx context.Context, a *UpdateRecordAction, actx Context) ActionResult {
	tableID := orDefault(SubstituteString(a.TableID, actx), actx.TableID)
	recordID := orDefault(SubstituteString(a.RecordID, actx), actx.RecordID)
	if tableID == "" || recordID == "" {
		return failure("update_record requires table_id and record_id")
	}
	if len(a.Fields) == 0 {
		return failure("update_record requires fields")
	}

	current := actx.Row()
	var meta []formula.FieldMeta
	if hasFormula(a.Fields) {
		row, err := e.records.Get(ctx, tableID, recordID)
		if err != nil {
			return failure("load record %s: %v", recordID, err)
		}
		current = row
		if meta, err = e.records.ListFields(ctx, tableID); err != nil {
			e.log.Warn().Err(err).Str("table_id", tableID).Msg("⚠️ Field metadata unavailable")
		}
	}

	fields := e.computeFields(a.Fields, actx, current, meta)
	if err := e.records.Update(ctx, tableID, recordID, fields); err != nil {
		return failure("update record %s: %v", recordID, err)
	}

	return success(map[string]interface{}{
		"table_id":  tableID,
		"record_id": recordID,
		"fields":    map[string]interface{}(fields),
	}).withLog(LevelInfo, fmt.Sprintf("Updated record %s in %s", recordID, tableID))
}

func (e *Executor) createRecord(ctx context.Context, a *CreateRecordAction, actx Context) ActionResult {
	tableID := orDefault(SubstituteString(a.TableID, actx), actx.TableID)
	if tableID == "" {
		return failure("create_record requires table_id")
	}

	var meta []formula.FieldMeta
	if hasFormula(a.Fields) && actx.TableID != "" {
		meta, _ = e.records.ListFields(ctx, actx.TableID)
	}
	fields := e.computeFields(a.Fields, actx, actx.Row(), meta)

	row, err := e.records.Insert(ctx, tableID, fields)
	if err != nil {
		return failure("create record in %s: %v", tableID, err)
	}
	id := cast.ToString(row["id"])

	res := success(map[string]interface{}{
		"table_id":  tableID,
		"record_id": id,
		"record":    map[string]interface{}(row),
	}).withLog(LevelInfo, fmt.Sprintf("Created record %s in %s", id, tableID))
	res.CreatedRecordID = id
	return res
}

func (e *Executor) deleteRecord(ctx context.Context, a *DeleteRecordAction, actx Context) ActionResult {
	tableID := orDefault(SubstituteString(a.TableID, actx), actx.TableID)
	recordID := orDefault(SubstituteString(a.RecordID, actx), actx.RecordID)
	if tableID == "" || recordID == "" {
		return failure("delete_record requires table_id and record_id")
	}
	if err := e.records.Delete(ctx, tableID, recordID); err != nil {
		return failure("delete record %s: %v", recordID, err)
	}
	return success(map[string]interface{}{
		"table_id":  tableID,
		"record_id": recordID,
	}).withLog(LevelInfo, fmt.Sprintf("Deleted record %s from %s", recordID, tableID))
}

func (e *Executor) sendEmail(ctx context.Context, a *SendEmailAction, actx Context) ActionResult {
	to := SubstituteString(a.To, actx)
	if strings.TrimSpace(to) == "" {
		return failure("send_email requires a recipient")
	}
	subject := SubstituteString(a.Subject, actx)
	body := SubstituteString(a.Body, actx)
	data := map[string]interface{}{
		"to":      to,
		"subject": subject,
		"body":    body,
	}

	if e.mailer == nil {
		e.log.Info().Str("automation_id", actx.AutomationID).Str("to", to).Msgf("📧 Email prepared: %s", subject)
		data["delivered"] = false
		return success(data).withLog(LevelInfo, fmt.Sprintf("Email to %s: %s", to, subject))
	}

	if err := e.mailer.SendEmail(ctx, to, subject, body); err != nil {
		return failure("send_email to %s failed: %v", to, err)
	}
	data["delivered"] = true
	return success(data).withLog(LevelInfo, fmt.Sprintf("Email sent to %s: %s", to, subject))
}

// ValidateWebhookURL accepts absolute http and https URLs only
func ValidateWebhookURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid webhook url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q: missing host", raw)
	}
	return u, nil
}

func (e *Executor) callWebhook(ctx context.Context, a *CallWebhookAction, actx Context) ActionResult {
	target, err := ValidateWebhookURL(SubstituteString(a.URL, actx))
	if err != nil {
		return failure("%v", err)
	}
	method := strings.ToUpper(orDefault(a.Method, http.MethodPost))

	var body io.Reader
	var isJSON bool
	switch b := Substitute(a.Body, actx).(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return failure("encode webhook body: %v", err)
		}
		body = bytes.NewReader(raw)
		isJSON = true
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return failure("create webhook request: %v", err)
	}
	for k, v := range a.Headers {
		req.Header.Set(k, SubstituteString(v, actx))
	}
	if isJSON && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	e.log.Info().Str("automation_id", actx.AutomationID).Msgf("🌐 Calling webhook: %s %s", method, target.Redacted())
	resp, err := e.http.Do(req)
	if err != nil {
		return failure("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	if err != nil {
		return failure("read webhook response: %v", err)
	}

	data := map[string]interface{}{"status": resp.StatusCode}
	var decoded interface{}
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		data["body"] = decoded
	} else {
		data["body"] = string(raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res := failure("webhook returned status %d", resp.StatusCode)
		res.Data = data
		return res
	}
	return success(data).withLog(LevelInfo, fmt.Sprintf("Webhook %s %s returned %d", method, target.Redacted(), resp.StatusCode))
}

// runScript evaluates the script as a formula. Fields come from the trigger
// data with variables layered on top.
func (e *Executor) runScript(a *RunScriptAction, actx Context) ActionResult {
	root, err := formula.Compile(a.Script)
	if err != nil {
		return failure("run_script: %v", err)
	}

	row := make(formula.Row, len(actx.TriggerData)+len(actx.Variables)+1)
	for k, v := range actx.TriggerData {
		row[k] = v
	}
	for k, v := range actx.Variables {
		row[k] = v
	}
	if actx.RecordID != "" {
		row["record_id"] = actx.RecordID
	}

	result := e.formula.Evaluate(root, row, nil)
	if formula.IsSentinel(result) {
		return failure("run_script evaluated to %v", result)
	}
	return success(map[string]interface{}{"result": result})
}

func (e *Executor) delayDuration(a *DelayAction) (time.Duration, error) {
	switch {
	case a.Duration != "":
		return time.ParseDuration(a.Duration)
	case a.Seconds != 0:
		return time.Duration(a.Seconds * float64(time.Second)), nil
	case a.Until != "":
		until, ok := formula.ToTime(a.Until)
		if !ok {
			return 0, fmt.Errorf("invalid until timestamp %q", a.Until)
		}
		return until.Sub(e.now()), nil
	}
	return 0, nil
}

func (e *Executor) delay(ctx context.Context, a *DelayAction) ActionResult {
	wait, err := e.delayDuration(a)
	if err != nil {
		return failure("delay: %v", err)
	}
	if wait <= 0 {
		return success(map[string]interface{}{"waited_ms": int64(0)})
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return success(map[string]interface{}{"waited_ms": wait.Milliseconds()})
	case <-ctx.Done():
		return failure("delay interrupted after %s: %v", e.timeout, ctx.Err())
	}
}

func (e *Executor) logMessage(a *LogMessageAction, actx Context) ActionResult {
	msg := SubstituteString(a.Message, actx)
	level := a.Level
	if level == "" {
		level = LevelInfo
	}

	var ev *zerolog.Event
	switch level {
	case LevelWarning:
		ev = e.log.Warn()
	case LevelError:
		ev = e.log.Error()
	default:
		level = LevelInfo
		ev = e.log.Info()
	}
	ev.Str("automation_id", actx.AutomationID).Msgf("📝 Automation log: %s", msg)

	return success(map[string]interface{}{"message": msg}).withLog(level, msg)
}

func (e *Executor) stopExecution(a *StopExecutionAction, actx Context) ActionResult {
	reason := orDefault(SubstituteString(a.Reason, actx), "stop_execution action")
	res := success(map[string]interface{}{"reason": reason}).withLog(LevelInfo, "Execution stopped: "+reason)
	res.Stop = true
	return res
}

func (e *Executor) generateText(ctx context.Context, a *GenerateTextAction, actx Context) ActionResult {
	if e.generator == nil {
		return failure("generate_text: no text generator configured")
	}
	prompt := SubstituteString(a.Prompt, actx)
	if strings.TrimSpace(prompt) == "" {
		return failure("generate_text requires a prompt")
	}

	text, err := e.generator.Generate(ctx, SubstituteString(a.System, actx), prompt)
	if err != nil {
		return failure("generate_text: %v", err)
	}
	return success(map[string]interface{}{"text": text})
}
