package api

import (
	"io"
	"net/http"

	"github.com/antonholmquist/jason"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/trigger"
	"github.com/labstack/echo/v4"
)

// initEventRoutes registers the HTTP trigger ingestion endpoint.
func (c *Controller) initEventRoutes(g *echo.Group) {
	g.POST("/alert-events", c.IngestAlertEvent)
}

// IngestAlertEvent accepts one attendance event and queues it for
// evaluation. The payload uses the same shape as the MQTT source; its
// institution defaults to the caller's.
func (c *Controller) IngestAlertEvent(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		c.observe(trigger.SourceHTTP, trigger.StatusRejected)
		return c.HandleError(ctx, errors.Validation("failed to read request body"), "alert event rejected")
	}

	obj, err := jason.NewObjectFromBytes(payload)
	if err != nil {
		c.observe(trigger.SourceHTTP, trigger.StatusRejected)
		return c.HandleError(ctx, errors.Validation("invalid attendance payload: "+err.Error()), "alert event rejected")
	}
	requested, _ := obj.GetString("institutionId")

	institutionID, err := currentUser(ctx).Scope(requested)
	if err != nil {
		c.observe(trigger.SourceHTTP, trigger.StatusRejected)
		return c.HandleError(ctx, err, "alert event rejected")
	}

	event, err := c.parser.Parse(trigger.TopicFor(institutionID), payload)
	if err != nil {
		c.observe(trigger.SourceHTTP, trigger.StatusRejected)
		return c.HandleError(ctx, err, "alert event rejected")
	}

	if !c.bus.Publish(event) {
		c.observe(trigger.SourceHTTP, trigger.StatusDropped)
		c.logger.Warn("alert event dropped, queue full",
			logger.String("institution_id", event.InstitutionID),
			logger.String("employee_id", event.EmployeeID))
		return ctx.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "Alert event queue is full, retry later"})
	}

	c.observe(trigger.SourceHTTP, trigger.StatusAccepted)
	return ctx.JSON(http.StatusAccepted, map[string]any{
		"status": trigger.StatusAccepted,
		"event":  event,
	})
}
