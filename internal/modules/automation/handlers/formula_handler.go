package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

// FormulaHandler exposes the formula engine to builder tooling
type FormulaHandler struct {
	evaluator *formula.Evaluator
}

func NewFormulaHandler(evaluator *formula.Evaluator) *FormulaHandler {
	if evaluator == nil {
		evaluator = formula.NewEvaluator()
	}
	return &FormulaHandler{evaluator: evaluator}
}

// EvaluateFormulaRequest is the body of POST /formula/evaluate
type EvaluateFormulaRequest struct {
	Formula string                 `json:"formula" example:"IF({score} > 10, \"high\", \"low\")"`
	Record  map[string]interface{} `json:"record"`
	Fields  []formula.FieldMeta    `json:"fields"`
}

// Evaluate godoc
// @Summary Evaluate a formula
// @Description Compiles and evaluates a formula against a record. Syntax errors are reported with their position instead of #ERROR!.
// @Tags Formula
// @Accept json
// @Produce json
// @Param request body EvaluateFormulaRequest true "Formula and record"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /formula/evaluate [post]
func (h *FormulaHandler) Evaluate(c *fiber.Ctx) error {
	var req EvaluateFormulaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	root, err := formula.Compile(req.Formula)
	if err != nil {
		resp := fiber.Map{"error": err.Error()}
		var lexErr *formula.LexError
		var parseErr *formula.ParseError
		switch {
		case errors.As(err, &lexErr):
			resp["position"] = lexErr.Pos
		case errors.As(err, &parseErr):
			resp["position"] = parseErr.Pos
		}
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}

	result := h.evaluator.Evaluate(root, formula.Row(req.Record), req.Fields)
	return c.JSON(fiber.Map{
		"status":     "success",
		"result":     result,
		"is_error":   formula.IsSentinel(result),
		"display":    formula.ToString(result),
		"references": formula.ReferencedFields(root),
	})
}
