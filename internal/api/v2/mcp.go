package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/edupresencia/fichai/internal/validation"
	"github.com/labstack/echo/v4"
)

type mcpExecuteRequest struct {
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// initMCPRoutes registers the command endpoint and the MCP SSE transport.
func (c *Controller) initMCPRoutes(g *echo.Group) {
	g.POST("/mcp/execute", c.ExecuteCommand)
	g.GET("/mcp/sse", c.HandleMCPTransport)
	g.POST("/mcp/sse", c.HandleMCPTransport)
}

// ExecuteCommand runs one administrative command on behalf of the caller.
func (c *Controller) ExecuteCommand(ctx echo.Context) error {
	var req mcpExecuteRequest
	if err := validation.DecodeJSON(ctx.Request().Body, &req); err != nil {
		return c.HandleError(ctx, err, "invalid command body")
	}

	result, err := c.executor.Run(ctx.Request().Context(), currentUser(ctx), req.Action, req.Parameters)
	if err != nil {
		return c.HandleError(ctx, err, "command failed")
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"action": req.Action,
		"result": result,
	})
}

// HandleMCPTransport serves the MCP SSE transport. The event stream is long
// lived, so the server write deadline is lifted for it.
func (c *Controller) HandleMCPTransport(ctx echo.Context) error {
	if ctx.Request().Method == http.MethodGet {
		_ = http.NewResponseController(ctx.Response()).SetWriteDeadline(time.Time{})
	}
	c.mcp.Handler().ServeHTTP(ctx.Response(), ctx.Request())
	return nil
}
