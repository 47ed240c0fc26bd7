package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/validation"
	"github.com/labstack/echo/v4"
)

// initAlertRuleRoutes registers the alert rule endpoints.
func (c *Controller) initAlertRuleRoutes(g *echo.Group) {
	rules := g.Group("/alert-rules")

	rules.GET("/schema", c.GetAlertSchema)
	rules.GET("/:institutionId", c.ListAlertRules)
	rules.POST("", c.CreateAlertRule)
	rules.PUT("/:ruleId", c.UpdateAlertRule)
	rules.DELETE("/:ruleId", c.DeleteAlertRule)
	rules.PATCH("/:ruleId/toggle", c.ToggleAlertRule)
	rules.POST("/:ruleId/test", c.TestAlertRule)
	rules.POST("/institution/:institutionId/defaults", c.SeedDefaultAlertRules)
}

// GetAlertSchema returns rule types, units, comparisons and placeholders.
func (c *Controller) GetAlertSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, alerting.GetSchema(c.language(ctx)))
}

// ListAlertRules returns the rules of an institution.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	institutionID, err := currentUser(ctx).Scope(ctx.Param("institutionId"))
	if err != nil {
		return c.HandleError(ctx, err, "alert rule listing rejected")
	}

	rules, err := c.rules.List(ctx.Request().Context(), institutionID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list alert rules")
	}
	return ctx.JSON(http.StatusOK, rules)
}

// CreateAlertRule creates a rule. The institution defaults to the caller's.
func (c *Controller) CreateAlertRule(ctx echo.Context) error {
	var rule entities.AlertRule
	if err := validation.DecodeJSON(ctx.Request().Body, &rule); err != nil {
		return c.HandleError(ctx, err, "invalid alert rule body")
	}

	institutionID, err := currentUser(ctx).Scope(rule.InstitutionID)
	if err != nil {
		return c.HandleError(ctx, err, "alert rule creation rejected")
	}
	rule.InstitutionID = institutionID

	created, err := c.rules.Create(ctx.Request().Context(), &rule)
	if err != nil {
		return c.HandleError(ctx, err, "failed to create alert rule")
	}
	return ctx.JSON(http.StatusCreated, created)
}

// UpdateAlertRule merges the request body onto an existing rule.
func (c *Controller) UpdateAlertRule(ctx echo.Context) error {
	rule, err := c.ownedRule(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "alert rule update rejected")
	}

	patch, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, errors.Validation("failed to read request body"), "alert rule update rejected")
	}

	updated, err := c.rules.Update(ctx.Request().Context(), rule.ID, patch)
	if err != nil {
		return c.HandleError(ctx, err, "failed to update alert rule")
	}
	if !updated.Enabled {
		c.cancelPending(updated.ID)
	}
	return ctx.JSON(http.StatusOK, updated)
}

// DeleteAlertRule deletes a rule and its pending deliveries.
func (c *Controller) DeleteAlertRule(ctx echo.Context) error {
	rule, err := c.ownedRule(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "alert rule deletion rejected")
	}

	if err := c.rules.Delete(ctx.Request().Context(), rule.ID); err != nil {
		return c.HandleError(ctx, err, "failed to delete alert rule")
	}
	c.cancelPending(rule.ID)

	return ctx.JSON(http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Alert rule %q deleted", rule.Name),
	})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// ToggleAlertRule enables or disables a rule.
func (c *Controller) ToggleAlertRule(ctx echo.Context) error {
	rule, err := c.ownedRule(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "alert rule toggle rejected")
	}

	var body toggleRequest
	if err := validation.DecodeJSON(ctx.Request().Body, &body); err != nil {
		return c.HandleError(ctx, err, "invalid toggle body")
	}
	if body.Enabled == nil {
		return c.HandleError(ctx, errors.Validation("enabled is required",
			errors.FieldError{Field: "enabled", Message: "enabled is required"}), "invalid toggle body")
	}

	toggled, err := c.rules.Toggle(ctx.Request().Context(), rule.ID, *body.Enabled)
	if err != nil {
		return c.HandleError(ctx, err, "failed to toggle alert rule")
	}
	if !toggled.Enabled {
		c.cancelPending(toggled.ID)
	}
	return ctx.JSON(http.StatusOK, toggled)
}

type testFireRequest struct {
	EmployeeID string `json:"employeeId"`
}

// TestAlertRule delivers a rule with a synthetic event at its threshold,
// bypassing evaluation and deduplication. The employee defaults to the caller.
func (c *Controller) TestAlertRule(ctx echo.Context) error {
	rule, err := c.ownedRule(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "alert rule test rejected")
	}

	var body testFireRequest
	raw, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.HandleError(ctx, errors.Validation("failed to read request body"), "alert rule test rejected")
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := validation.DecodeJSONBytes(raw, &body); err != nil {
			return c.HandleError(ctx, err, "invalid test body")
		}
	}
	if body.EmployeeID == "" {
		body.EmployeeID = currentUser(ctx).ID
	}

	report, err := c.engine.TestFireRule(ctx.Request().Context(), rule, body.EmployeeID)
	if report == nil {
		return c.HandleError(ctx, err, "failed to test alert rule")
	}

	resp := map[string]any{
		"status": report.Status(),
		"report": report,
	}
	if err != nil {
		c.logger.Warn("alert rule test delivered partially",
			logger.String("rule_id", rule.ID),
			logger.Error(err))
		resp["error"] = err.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

// SeedDefaultAlertRules creates the default rules an institution is missing.
func (c *Controller) SeedDefaultAlertRules(ctx echo.Context) error {
	institutionID, err := currentUser(ctx).Scope(ctx.Param("institutionId"))
	if err != nil {
		return c.HandleError(ctx, err, "default rule seeding rejected")
	}

	created, err := c.rules.SeedDefaults(ctx.Request().Context(), institutionID, c.language(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "failed to seed default alert rules")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"institutionId": institutionID,
		"created":       created,
	})
}

// ownedRule loads the :ruleId rule and checks the caller may act on its
// institution. A missing rule is not found, a foreign one forbidden.
func (c *Controller) ownedRule(ctx echo.Context) (*entities.AlertRule, error) {
	id := ctx.Param("ruleId")
	rule, err := c.rules.Get(ctx.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !currentUser(ctx).CanAccess(rule.InstitutionID) {
		return nil, errors.Forbidden("access to alert rule %s denied", id)
	}
	return rule, nil
}

func (c *Controller) cancelPending(ruleID string) {
	if s := c.engine.Scheduler(); s != nil {
		if n := s.CancelRule(ruleID); n > 0 {
			c.logger.Info("cancelled pending alert deliveries",
				logger.String("rule_id", ruleID),
				logger.Int("jobs", n))
		}
	}
}
