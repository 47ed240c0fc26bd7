package api

import (
	"net/http"

	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/labstack/echo/v4"
)

// InternalErrorMessage is the only detail clients get for server side failures.
const InternalErrorMessage = "Internal server error"

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  []errors.FieldError `json:"errors,omitempty"`
}

// ErrorStatus maps an error category to its HTTP status.
func ErrorStatus(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryAuthorization:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the client body for err. Server side failures are
// reduced to InternalErrorMessage.
func NewErrorResponse(err error) (int, ErrorResponse) {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		return status, ErrorResponse{Message: InternalErrorMessage}
	}
	return status, ErrorResponse{Message: err.Error(), Errors: errors.FieldsOf(err)}
}

// HandleError writes err as a JSON response. Server side failures are logged
// with msg and the full error.
func (c *Controller) HandleError(ctx echo.Context, err error, msg string) error {
	status, body := NewErrorResponse(err)
	if status >= http.StatusInternalServerError {
		c.logger.Error(msg,
			logger.Error(err),
			logger.String("category", string(errors.CategoryOf(err))),
			logger.String("method", ctx.Request().Method),
			logger.String("route", ctx.Path()))
	} else {
		c.logger.Debug(msg,
			logger.Error(err),
			logger.Int("status", status),
			logger.String("route", ctx.Path()))
	}
	return ctx.JSON(status, body)
}
