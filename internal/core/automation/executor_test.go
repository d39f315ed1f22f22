package automation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() Context {
	return Context{
		AutomationID: "auto-1",
		TriggerType:  TriggerManual,
		TriggerData:  map[string]interface{}{"name": "Ann", "amount": 21},
		RecordID:     "r1",
		Variables:    map[string]interface{}{},
	}
}

func TestCallWebhookRejectsNonHTTPScheme(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	exec := NewExecutor(records.NewMemoryStore(), WithHTTPClient(srv.Client()))
	for _, u := range []string{"file:///etc/passwd", "ftp://example.com/x", "/relative", "http://"} {
		res := exec.Execute(context.Background(), &CallWebhookAction{URL: u}, testContext())
		assert.False(t, res.Success, u)
		assert.Contains(t, res.Error, "invalid webhook url", u)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCallWebhook(t *testing.T) {
	var gotBody map[string]interface{}
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Customer")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	exec := NewExecutor(records.NewMemoryStore(), WithHTTPClient(srv.Client()))
	res := exec.Execute(context.Background(), &CallWebhookAction{
		URL:     srv.URL + "/hook",
		Headers: map[string]string{"X-Customer": "{{name}}"},
		Body:    map[string]interface{}{"greeting": "Hello {{name}}", "record": "{{record_id}}"},
	}, testContext())

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 200, res.Data["status"])
	assert.Equal(t, map[string]interface{}{"ok": true}, res.Data["body"])
	assert.Equal(t, "Ann", gotHeader)
	assert.Equal(t, map[string]interface{}{"greeting": "Hello Ann", "record": "r1"}, gotBody)
}

func TestCallWebhookNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	exec := NewExecutor(records.NewMemoryStore(), WithHTTPClient(srv.Client()))
	res := exec.Execute(context.Background(), &CallWebhookAction{URL: srv.URL, Method: "get"}, testContext())

	assert.False(t, res.Success)
	assert.Equal(t, "webhook returned status 502", res.Error)
	assert.Equal(t, http.StatusBadGateway, res.Data["status"])
	assert.Equal(t, "upstream down", res.Data["body"])
}

func TestExecuteTimeout(t *testing.T) {
	exec := NewExecutor(records.NewMemoryStore(), WithActionTimeout(50*time.Millisecond))

	start := time.Now()
	res := exec.Execute(context.Background(), &DelayAction{Duration: "5s"}, testContext())
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out after 50ms")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestDelay(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	exec := NewExecutor(records.NewMemoryStore(), WithExecutorClock(func() time.Time { return now }))

	res := exec.Execute(context.Background(), &DelayAction{Until: "2023-12-31T00:00:00Z"}, testContext())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(0), res.Data["waited_ms"])

	res = exec.Execute(context.Background(), &DelayAction{Seconds: -3}, testContext())
	assert.True(t, res.Success)

	res = exec.Execute(context.Background(), &DelayAction{Duration: "10ms"}, testContext())
	require.True(t, res.Success)
	assert.Equal(t, int64(10), res.Data["waited_ms"])

	res = exec.Execute(context.Background(), &DelayAction{Duration: "soon"}, testContext())
	assert.False(t, res.Success)
}

func TestRunScript(t *testing.T) {
	exec := NewExecutor(records.NewMemoryStore())
	actx := testContext().WithVariable("bonus", 8)

	res := exec.Execute(context.Background(), &RunScriptAction{Script: "{amount} * 2 + {bonus}"}, actx)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 50.0, res.Data["result"])

	res = exec.Execute(context.Background(), &RunScriptAction{Script: "{amount} / 0"}, actx)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "#DIV/0!")

	res = exec.Execute(context.Background(), &RunScriptAction{Script: "process.exit(1)"}, actx)
	assert.False(t, res.Success)
}

type fakeGenerator struct {
	system, prompt string
	err            error
}

func (g *fakeGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.system, g.prompt = system, prompt
	if g.err != nil {
		return "", g.err
	}
	return "summary for " + prompt, nil
}

func TestGenerateText(t *testing.T) {
	res := NewExecutor(records.NewMemoryStore()).Execute(context.Background(), &GenerateTextAction{Prompt: "x"}, testContext())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no text generator configured")

	gen := &fakeGenerator{}
	exec := NewExecutor(records.NewMemoryStore(), WithTextGenerator(gen))
	res = exec.Execute(context.Background(), &GenerateTextAction{System: "be brief", Prompt: "{{name}}"}, testContext())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "summary for Ann", res.Data["text"])
	assert.Equal(t, "be brief", gen.system)

	gen.err = errors.New("quota exceeded")
	res = exec.Execute(context.Background(), &GenerateTextAction{Prompt: "x"}, testContext())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "quota exceeded")
}

func TestSendEmailAndLogMessage(t *testing.T) {
	exec := NewExecutor(records.NewMemoryStore())

	res := exec.Execute(context.Background(), &SendEmailAction{To: "{{name}}@example.com", Subject: "Hi {{name}}", Body: "id={{record_id}}"}, testContext())
	require.True(t, res.Success)
	assert.Equal(t, "Ann@example.com", res.Data["to"])
	assert.Equal(t, "id=r1", res.Data["body"])
	assert.Equal(t, false, res.Data["delivered"])

	res = exec.Execute(context.Background(), &SendEmailAction{To: "{{missing}}"}, testContext())
	assert.False(t, res.Success)

	res = exec.Execute(context.Background(), &LogMessageAction{Message: "careful {{name}}", Level: LevelWarning}, testContext())
	require.True(t, res.Success)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, LevelWarning, res.Logs[0].Level)
	assert.Equal(t, "careful Ann", res.Logs[0].Message)
}

type mailerFunc func(ctx context.Context, to, subject, body string) error

func (f mailerFunc) SendEmail(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

func TestSendEmailWithMailer(t *testing.T) {
	var sentTo string
	exec := NewExecutor(records.NewMemoryStore(), WithMailer(mailerFunc(func(_ context.Context, to, _, _ string) error {
		sentTo = to
		return nil
	})))
	res := exec.Execute(context.Background(), &SendEmailAction{To: "{{name}}@example.com", Subject: "Hi"}, testContext())
	require.True(t, res.Success)
	assert.Equal(t, "Ann@example.com", sentTo)
	assert.Equal(t, true, res.Data["delivered"])

	failing := NewExecutor(records.NewMemoryStore(), WithMailer(mailerFunc(func(context.Context, string, string, string) error {
		return errors.New("mailbox full")
	})))
	res = failing.Execute(context.Background(), &SendEmailAction{To: "ops@example.com"}, testContext())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "mailbox full")
}

func TestRecordActions(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	_, err := store.Insert(ctx, "tasks", map[string]interface{}{"id": "r1", "count": 4.0, "size": "1e300"})
	require.NoError(t, err)

	exec := NewExecutor(store)
	actx := testContext()
	actx.TableID = "tasks"

	res := exec.Execute(ctx, &UpdateRecordAction{Fields: map[string]interface{}{
		"count": "={count} * 2",
		"label": "=CONCATENATE(",
		"owner": "{{name}}",
		"short": `=LEFT("abcdef", {size})`,
	}}, actx)
	require.True(t, res.Success, res.Error)

	row, err := store.Get(ctx, "tasks", "r1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, row["count"])
	assert.Equal(t, "=CONCATENATE(", row["label"], "invalid formulas are written literally")
	assert.Equal(t, "Ann", row["owner"])
	assert.Equal(t, "abcdef", row["short"])

	res = exec.Execute(ctx, &UpdateRecordAction{TableID: "tasks"}, actx)
	assert.False(t, res.Success)

	res = exec.Execute(ctx, &DeleteRecordAction{}, actx)
	require.True(t, res.Success, res.Error)
	_, err = store.Get(ctx, "tasks", "r1")
	assert.ErrorIs(t, err, records.ErrNotFound)

	res = exec.Execute(ctx, &CreateRecordAction{Fields: map[string]interface{}{"title": "from {{name}}"}}, actx)
	require.True(t, res.Success, res.Error)
	require.NotEmpty(t, res.CreatedRecordID)
	assert.Equal(t, res.CreatedRecordID, res.Data["record_id"])
}

func TestStopExecution(t *testing.T) {
	res := NewExecutor(records.NewMemoryStore()).Execute(context.Background(), &StopExecutionAction{}, testContext())
	assert.True(t, res.Success)
	assert.True(t, res.Stop)
}
