// Package api implements the administrative REST API of the alerting service
// under /api/admin.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/auth"
	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/mcpserver"
	"github.com/edupresencia/fichai/internal/notification"
	"github.com/edupresencia/fichai/internal/trigger"
	"github.com/labstack/echo/v4"
)

const (
	componentAPI = "admin-api"

	defaultListLimit = 50
	maxListLimit     = 200
)

// Controller owns the admin routes and their collaborators.
type Controller struct {
	Group    *echo.Group
	Settings *conf.Settings

	rules          *alerting.RuleStore
	engine         *alerting.Engine
	bus            *alerting.AlertEventBus
	history        repository.AlertRuleRepository
	communications repository.CommunicationRepository
	sessions       *auth.SessionStore
	hub            *OutcomeHub
	executor       *mcpserver.Executor
	mcp            *mcpserver.Server
	parser         *trigger.Parser
	observe        trigger.Observer
	logger         logger.Logger

	// ctx is cancelled on shutdown and closes open alert streams.
	ctx context.Context
}

// Dependencies are the collaborators of a Controller. Email and Observe may
// be nil.
type Dependencies struct {
	Settings       *conf.Settings
	Alerting       *alerting.Runtime
	History        repository.AlertRuleRepository
	Communications repository.CommunicationRepository
	Employees      repository.EmployeeRepository
	Email          notification.EmailSender
	Sessions       *auth.SessionStore
	Observe        trigger.Observer
}

// New creates the controller and registers its routes on group.
func New(ctx context.Context, group *echo.Group, deps Dependencies, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Module("api")
	settings := deps.Settings
	if settings == nil {
		settings = conf.Default()
	}
	observe := deps.Observe
	if observe == nil {
		observe = func(string, string) {}
	}

	executor := mcpserver.NewExecutor(mcpserver.ExecutorDeps{
		Rules:          deps.Alerting.Store,
		History:        deps.History,
		Employees:      deps.Employees,
		Communications: deps.Communications,
		Email:          deps.Email,
	}, log)

	c := &Controller{
		Group:          group,
		Settings:       settings,
		rules:          deps.Alerting.Store,
		engine:         deps.Alerting.Engine,
		bus:            deps.Alerting.Bus,
		history:        deps.History,
		communications: deps.Communications,
		sessions:       deps.Sessions,
		hub:            NewOutcomeHub(hubBufferSize),
		executor:       executor,
		mcp:            mcpserver.New(executor, alerting.MatchLanguage(settings.Alerting.Language), log),
		parser:         trigger.NewParser(nil),
		observe:        observe,
		logger:         log,
		ctx:            ctx,
	}
	c.engine.Subscribe(c.hub.Publish)
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	admin := c.Group.Group("", c.authMiddleware)

	c.initAlertRuleRoutes(admin)
	c.initEventRoutes(admin)
	c.initHistoryRoutes(admin)
	c.initCommunicationRoutes(admin)
	c.initStreamRoutes(admin)
	c.initMCPRoutes(admin)
}

// authMiddleware admits requests whose session belongs to an admin or
// superadmin and stores the user in the request context.
func (c *Controller) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		user, err := c.sessions.Load(ctx.Request())
		if err != nil {
			return ctx.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Authentication required"})
		}
		if !user.IsAdmin() {
			c.logger.Warn("non-admin request rejected",
				logger.String("user_id", user.ID),
				logger.String("role", string(user.Role)),
				logger.String("path", ctx.Path()))
			return ctx.JSON(http.StatusForbidden, ErrorResponse{Message: "Administrator role required"})
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(auth.WithUser(req.Context(), user)))
		return next(ctx)
	}
}

func currentUser(ctx echo.Context) *auth.User {
	return auth.UserFromContext(ctx.Request().Context())
}

// language picks the template language from the lang query parameter, the
// Accept-Language header and the configured default, in that order.
func (c *Controller) language(ctx echo.Context) string {
	prefs := make([]string, 0, 3)
	for _, s := range []string{
		ctx.QueryParam("lang"),
		ctx.Request().Header.Get("Accept-Language"),
		c.Settings.Alerting.Language,
	} {
		if s != "" {
			prefs = append(prefs, s)
		}
	}
	return alerting.MatchLanguage(prefs...)
}

// pagination reads limit and offset. Invalid values fall back to the
// defaults; limit is capped at maxListLimit.
func pagination(ctx echo.Context) (limit, offset int) {
	limit = defaultListLimit
	if v, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, maxListLimit)
	}
	if v, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
