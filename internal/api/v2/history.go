package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/labstack/echo/v4"
)

// maxExportRows bounds a single spreadsheet export.
const maxExportRows = 5000

// initHistoryRoutes registers the alert history endpoints.
func (c *Controller) initHistoryRoutes(g *echo.Group) {
	history := g.Group("/alert-history")
	history.GET("/:institutionId", c.ListAlertHistory)
	history.GET("/:institutionId/export", c.ExportAlertHistory)
}

// ListAlertHistory returns paginated history, newest first.
func (c *Controller) ListAlertHistory(ctx echo.Context) error {
	filter, err := c.historyFilter(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "alert history listing rejected")
	}
	filter.Limit, filter.Offset = pagination(ctx)

	items, total, err := c.history.ListHistory(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, errors.Dependency(componentAPI, err), "failed to list alert history")
	}
	if items == nil {
		items = []entities.AlertHistory{}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"history": items,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// ExportAlertHistory returns the filtered history as an xlsx workbook.
func (c *Controller) ExportAlertHistory(ctx echo.Context) error {
	filter, err := c.historyFilter(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "alert history export rejected")
	}
	filter.Limit = maxExportRows

	items, total, err := c.history.ListHistory(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, errors.Dependency(componentAPI, err), "failed to export alert history")
	}
	if total > int64(len(items)) {
		c.logger.Warn("alert history export truncated",
			logger.String("institution_id", filter.InstitutionID),
			logger.Int64("total", total),
			logger.Int("exported", len(items)))
	}

	data, err := buildHistoryWorkbook(items, c.language(ctx))
	if err != nil {
		return c.HandleError(ctx, errors.Dependency(componentAPI, err), "failed to build alert history workbook")
	}

	filename := fmt.Sprintf("alert-history-%s-%s.xlsx", filter.InstitutionID, time.Now().Format("20060102"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+filename)
	return ctx.Blob(http.StatusOK, xlsxContentType, data)
}

// historyFilter reads the institution, the optional ruleId and employeeId
// filters and the since/until bounds (RFC 3339 or a local yyyy-mm-dd date).
// until is exclusive.
func (c *Controller) historyFilter(ctx echo.Context) (repository.AlertHistoryFilter, error) {
	var filter repository.AlertHistoryFilter

	institutionID, err := currentUser(ctx).Scope(ctx.Param("institutionId"))
	if err != nil {
		return filter, err
	}
	filter.InstitutionID = institutionID
	filter.RuleID = ctx.QueryParam("ruleId")
	filter.EmployeeID = ctx.QueryParam("employeeId")

	if filter.Since, err = parseTimeParam(ctx, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTimeParam(ctx, "until"); err != nil {
		return filter, err
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return filter, errors.Validation("until must not be before since",
			errors.FieldError{Field: "until", Message: "until must not be before since"})
	}
	return filter, nil
}

func parseTimeParam(ctx echo.Context, name string) (time.Time, error) {
	value := ctx.QueryParam(name)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, value, time.Local); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.Validation("invalid "+name,
		errors.FieldError{Field: name, Message: name + " must be an RFC 3339 timestamp or a yyyy-mm-dd date"})
}
