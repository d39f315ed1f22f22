package handlers

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/automation"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/events"
	"github.com/SophieEDesign/marketinghub-sub008/internal/core/export"
	"github.com/SophieEDesign/marketinghub-sub008/internal/modules/automation/services"
)

// AutomationHandler handles automation-related requests
type AutomationHandler struct {
	automationService *services.AutomationService
}

// NewAutomationHandler creates a new automation handler
func NewAutomationHandler(automationService *services.AutomationService) *AutomationHandler {
	return &AutomationHandler{
		automationService: automationService,
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrAutomationNotFound), errors.Is(err, services.ErrRunNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidAutomation), errors.Is(err, services.ErrTriggerMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrAutomationDisabled):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("❌ Request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func invalidID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid id format",
	})
}

// CreateAutomation godoc
// @Summary Create a new automation
// @Description Create an automation; trigger, conditions and actions are validated by decoding them
// @Tags Automations
// @Accept json
// @Produce json
// @Param automation body services.CreateAutomationRequest true "Automation definition"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /automations [post]
func (h *AutomationHandler) CreateAutomation(c *fiber.Ctx) error {
	var req services.CreateAutomationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	created, err := h.automationService.CreateAutomation(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": "Automation created successfully",
		"data":    created,
	})
}

// ListAutomations godoc
// @Summary List automations
// @Tags Automations
// @Produce json
// @Param table_id query string false "Only automations of this table"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /automations [get]
func (h *AutomationHandler) ListAutomations(c *fiber.Ctx) error {
	list, err := h.automationService.ListAutomations(c.UserContext(), c.Query("table_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(list),
		"data":   list,
	})
}

// GetAutomation godoc
// @Summary Get an automation by ID
// @Tags Automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /automations/{id} [get]
func (h *AutomationHandler) GetAutomation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}

	a, err := h.automationService.GetAutomation(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   a,
	})
}

// UpdateAutomation godoc
// @Summary Update an automation
// @Description Update an existing automation; absent fields are unchanged
// @Tags Automations
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param automation body services.UpdateAutomationRequest true "Updated fields"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /automations/{id} [put]
func (h *AutomationHandler) UpdateAutomation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}

	var req services.UpdateAutomationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	updated, err := h.automationService.UpdateAutomation(c.UserContext(), id, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Automation updated successfully",
		"data":    updated,
	})
}

// DeleteAutomation godoc
// @Summary Delete an automation
// @Description Delete an automation together with its runs and logs
// @Tags Automations
// @Produce json
// @Param id path string true "Automation ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /automations/{id} [delete]
func (h *AutomationHandler) DeleteAutomation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}

	if err := h.automationService.DeleteAutomation(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Automation deleted successfully",
	})
}

func payload(c *fiber.Ctx) map[string]interface{} {
	body := map[string]interface{}{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			body = map[string]interface{}{}
		}
	}
	return body
}

func runResponse(c *fiber.Ctx, run *automation.Run, err error) error {
	if run == nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   run,
	})
}

// RunAutomation godoc
// @Summary Run an automation manually
// @Description Runs the automation now regardless of its trigger. The body becomes the trigger data.
// @Tags Automations
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param payload body map[string]interface{} false "Trigger data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /automations/{id}/run [post]
func (h *AutomationHandler) RunAutomation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	run, err := h.automationService.RunManual(c.UserContext(), id, payload(c))
	return runResponse(c, run, err)
}

// Webhook godoc
// @Summary Invoke a webhook-triggered automation
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param id path string true "Automation ID"
// @Param payload body map[string]interface{} false "Webhook payload"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /webhooks/automations/{id} [post]
func (h *AutomationHandler) Webhook(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	run, err := h.automationService.Webhook(c.UserContext(), id, payload(c))
	return runResponse(c, run, err)
}

// RecordEvent godoc
// @Summary Ingest a record change
// @Description Dispatches a row created/updated/deleted event to every enabled automation listening to it and waits for the runs
// @Tags Records
// @Accept json
// @Produce json
// @Param event body events.RecordEvent true "Record event"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /records/events [post]
func (h *AutomationHandler) RecordEvent(c *fiber.Ctx) error {
	var req events.RecordEvent
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	ev, err := req.ToEvent()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	runs, err := h.automationService.DispatchEvent(c.UserContext(), ev)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(runs),
		"data":   runs,
	})
}

// GetRuns godoc
// @Summary Get automation run history
// @Tags Runs
// @Produce json
// @Param id path string true "Automation ID"
// @Param limit query int false "Limit number of results" default(50)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /automations/{id}/runs [get]
func (h *AutomationHandler) GetRuns(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	runs, err := h.automationService.GetRuns(c.UserContext(), id, c.QueryInt("limit", 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(runs),
		"data":   runs,
	})
}

// ExportRuns godoc
// @Summary Download automation run history
// @Tags Runs
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Param id path string true "Automation ID"
// @Param format query string false "xlsx or pdf" default(xlsx)
// @Param limit query int false "Limit number of runs" default(500)
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /automations/{id}/runs/export [get]
func (h *AutomationHandler) ExportRuns(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	exporter, err := export.NewExporter(c.Query("format"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	table, err := h.automationService.RunHistoryTable(c.UserContext(), id, c.QueryInt("limit", 500))
	if err != nil {
		return fail(c, err)
	}

	var buf bytes.Buffer
	if err := exporter.Export(table, &buf); err != nil {
		return fail(c, err)
	}
	c.Attachment(fmt.Sprintf("automation-%s-runs%s", id, exporter.GetFileExtension()))
	c.Set(fiber.HeaderContentType, exporter.GetContentType())
	return c.Send(buf.Bytes())
}

// GetAutomationLogs godoc
// @Summary Get the latest log lines of an automation
// @Tags Runs
// @Produce json
// @Param id path string true "Automation ID"
// @Param limit query int false "Limit number of results" default(100)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /automations/{id}/logs [get]
func (h *AutomationHandler) GetAutomationLogs(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	logs, err := h.automationService.GetAutomationLogs(c.UserContext(), id, c.QueryInt("limit", 100))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(logs),
		"data":   logs,
	})
}

// GetRunLogs godoc
// @Summary Get the log lines of one run
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /runs/{id}/logs [get]
func (h *AutomationHandler) GetRunLogs(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidID(c)
	}
	logs, err := h.automationService.GetRunLogs(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(logs),
		"data":   logs,
	})
}

// Tick godoc
// @Summary Run one scheduler pass
// @Description Idempotent; a pass overlapping a running one is skipped
// @Tags Scheduler
// @Produce json
// @Success 200 {object} automation.TickReport
// @Router /scheduler/tick [post]
func (h *AutomationHandler) Tick(c *fiber.Ctx) error {
	return c.JSON(h.automationService.Tick(c.UserContext()))
}
