package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetHealth godoc
// @Summary Service health check
// @Description Check if API is alive
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "automation-api",
	})
}

// RegisterRoutes mounts the automation API on router
func RegisterRoutes(router fiber.Router, automations *AutomationHandler, formulas *FormulaHandler) {
	router.Get("/health", GetHealth)

	a := router.Group("/automations")
	a.Post("/", automations.CreateAutomation)
	a.Get("/", automations.ListAutomations)
	a.Get("/:id", automations.GetAutomation)
	a.Put("/:id", automations.UpdateAutomation)
	a.Delete("/:id", automations.DeleteAutomation)
	a.Post("/:id/run", automations.RunAutomation)
	a.Get("/:id/runs", automations.GetRuns)
	a.Get("/:id/runs/export", automations.ExportRuns)
	a.Get("/:id/logs", automations.GetAutomationLogs)

	router.Get("/runs/:id/logs", automations.GetRunLogs)
	router.Post("/webhooks/automations/:id", automations.Webhook)
	router.Post("/records/events", automations.RecordEvent)
	router.Post("/scheduler/tick", automations.Tick)
	router.Post("/formula/evaluate", formulas.Evaluate)
}
