package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/models"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/config"
	"github.com/SophieEDesign/marketinghub-sub008/internal/shared/database"
)

func execute(t *testing.T, open OpenFunc, args ...string) (map[string]interface{}, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(context.Background(), &config.Config{}, open)
	root.SetOut(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return nil, err
	}
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	return body, nil
}

func TestEvalCommand(t *testing.T) {
	body, err := execute(t, nil, "eval", `IF({score} > 10, "high", "low")`, "--record", `{"score": 12}`)
	require.NoError(t, err)
	assert.Equal(t, "high", body["result"])
	assert.Equal(t, false, body["is_error"])
	assert.Equal(t, []interface{}{"score"}, body["references"])

	body, err = execute(t, nil, "eval", "1/0")
	require.NoError(t, err)
	assert.Equal(t, "#DIV/0!", body["display"])
	assert.Equal(t, true, body["is_error"])

	_, err = execute(t, nil, "eval", "SUM(1,")
	assert.Error(t, err)

	_, err = execute(t, nil, "eval", "{a}", "--record", "not json")
	assert.Error(t, err)
}

func TestRunAndTickCommands(t *testing.T) {
	seed, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	defer seed.Close()
	require.NoError(t, seed.GORM.AutoMigrate(models.All()...))

	m := &models.Automation{
		Name:        "cli run",
		TriggerType: "webhook",
		Trigger:     datatypes.JSON(`{"type":"webhook"}`),
		Actions:     datatypes.JSON(`[{"type":"log_message","message":"hello {{who}}"}]`),
		Enabled:     true,
	}
	require.NoError(t, seed.GORM.Create(m).Error)

	open := func() (*database.DB, error) { return database.OpenMemory(t.Name()) }

	body, err := execute(t, open, "run", m.ID.String(), "--payload", `{"who":"cli"}`)
	require.NoError(t, err)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, m.ID.String(), body["automation_id"])

	var runs int64
	require.NoError(t, seed.GORM.Model(&models.AutomationRun{}).Where("automation_id = ?", m.ID).Count(&runs).Error)
	assert.Equal(t, int64(1), runs)

	body, err = execute(t, open, "tick")
	require.NoError(t, err)
	assert.Equal(t, float64(0), body["checked"])

	_, err = execute(t, open, "run", "not-a-uuid")
	assert.Error(t, err)
}
