package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/auth"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is injected from the build metadata.
var Version = "dev"

const resourceAlertSchema = "fichai://alerting/schema"

// Server exposes the commands as MCP tools over SSE. Each SSE session gets
// its own MCP server bound to the administrator that opened it.
type Server struct {
	executor *Executor
	language string
	handler  http.Handler
	log      logger.Logger
}

// New creates the MCP surface. language selects the labels of the schema
// resource.
func New(executor *Executor, language string, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		executor: executor,
		language: language,
		log:      log.Module("mcp"),
	}
	s.handler = mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		user := auth.UserFromContext(r.Context())
		if !user.IsAdmin() {
			return nil
		}
		s.log.Info("mcp session opened",
			logger.String("user_id", user.ID),
			logger.String("institution_id", user.InstitutionID))
		return s.newServer(user)
	}, nil)
	return s
}

// Handler returns the SSE handler. It expects the authenticated user in the
// request context.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) newServer(user *auth.User) *mcp.Server {
	version := Version
	if version == "" {
		version = "dev"
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: "fichai", Version: version}, nil)

	addTool[ListAlertRules](srv, s.executor, user, "List the attendance alert rules of an institution")
	addTool[CreateAlertRule](srv, s.executor, user, "Create an attendance alert rule")
	addTool[ToggleAlertRule](srv, s.executor, user, "Enable or disable an alert rule")
	addTool[DeleteAlertRule](srv, s.executor, user, "Delete an alert rule")
	addTool[GetAlertHistory](srv, s.executor, user, "List recent alert notifications, newest first")
	addTool[SendEmail](srv, s.executor, user, "Send an email to one address")
	addTool[SendMessage](srv, s.executor, user, "Send an internal message to every employee of a department")

	srv.AddResource(&mcp.Resource{
		URI:         resourceAlertSchema,
		Name:        "Alert rule schema",
		Description: "Rule types, units, comparisons and template placeholders",
		MIMEType:    "application/json",
	}, s.handleSchemaResource)

	return srv
}

func addTool[C Command](srv *mcp.Server, executor *Executor, user *auth.User, description string) {
	var zero C
	mcp.AddTool(srv, &mcp.Tool{
		Name:        string(zero.Action()),
		Description: description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in C) (*mcp.CallToolResult, any, error) {
		out, err := executor.Execute(ctx, user, in)
		if err != nil {
			return nil, nil, err
		}
		return jsonToolResult(out)
	})
}

func (s *Server) handleSchemaResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(alerting.GetSchema(s.language))
	if err != nil {
		return nil, err
	}
	uri := resourceAlertSchema
	if req != nil && req.Params != nil && req.Params.URI != "" {
		uri = req.Params.URI
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func jsonToolResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
