package api

import (
	"net/http"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/labstack/echo/v4"
)

// messageTypeAll disables the message type filter.
const messageTypeAll = "all"

// initCommunicationRoutes registers the internal message endpoints.
func (c *Controller) initCommunicationRoutes(g *echo.Group) {
	g.GET("/communications/:institutionId", c.ListCommunications)
}

// ListCommunications returns an institution's internal messages, newest
// first. Only alert messages are listed unless type is given; type=all lists
// every message.
func (c *Controller) ListCommunications(ctx echo.Context) error {
	institutionID, err := currentUser(ctx).Scope(ctx.Param("institutionId"))
	if err != nil {
		return c.HandleError(ctx, err, "communication listing rejected")
	}

	filter := repository.CommunicationFilter{
		InstitutionID: institutionID,
		RecipientID:   ctx.QueryParam("recipientId"),
		MessageType:   entities.MessageTypeAlert,
	}
	switch t := ctx.QueryParam("type"); t {
	case "":
	case messageTypeAll:
		filter.MessageType = ""
	case entities.MessageTypeAlert, entities.MessageTypeMessage:
		filter.MessageType = t
	default:
		return c.HandleError(ctx, errors.Validation("invalid type",
			errors.FieldError{Field: "type", Message: "type must be alert, message or all"}), "communication listing rejected")
	}
	filter.Limit, filter.Offset = pagination(ctx)

	items, total, err := c.communications.ListForInstitution(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, errors.Dependency(componentAPI, err), "failed to list communications")
	}
	if items == nil {
		items = []entities.Communication{}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"communications": items,
		"total":          total,
		"limit":          filter.Limit,
		"offset":         filter.Offset,
	})
}
