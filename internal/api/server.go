// Package api hosts the HTTP server of the alerting service. The admin REST
// API itself lives in internal/api/v2.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apiv2 "github.com/edupresencia/fichai/internal/api/v2"
	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/mcpserver"
	"github.com/edupresencia/fichai/internal/observability/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	bodyLimit      = "1M"
	unmatchedRoute = "unmatched"
)

// Server wires the echo instance, the admin API controller and the
// operational endpoints.
type Server struct {
	echo       *echo.Echo
	settings   conf.ServerSettings
	metrics    *metrics.Metrics
	controller *apiv2.Controller
	logger     logger.Logger
}

// New builds the server. ctx bounds long-lived connections such as the
// alert stream; cancel it before Shutdown.
func New(ctx context.Context, deps apiv2.Dependencies, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		echo:     echo.New(),
		settings: deps.Settings.Server,
		metrics:  m,
		logger:   log.Module("http"),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = s.settings.Debug
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())
	s.echo.Use(s.observeRequests)
	s.echo.Use(middleware.BodyLimit(bodyLimit))

	s.echo.GET("/healthz", s.health)
	s.echo.GET("/metrics", echo.WrapHandler(m.Handler()))

	s.controller = apiv2.New(ctx, s.echo.Group("/api/admin"), deps, log)
	return s
}

// ServeHTTP lets tests drive the server without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = s.settings.ReadTimeout.Std()
	s.echo.Server.WriteTimeout = s.settings.WriteTimeout.Std()

	s.logger.Info("http server listening", logger.String("addr", s.settings.Addr()))
	if err := s.echo.Start(s.settings.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Category(errors.CategoryDependency).
			Component("http").
			Context("addr", s.settings.Addr()).
			Build()
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": mcpserver.Version,
		"time":    time.Now().UTC(),
	})
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			if v.Status >= http.StatusInternalServerError {
				s.logger.Warn("http request failed", fields...)
				return nil
			}
			s.logger.Debug("http request", fields...)
			return nil
		},
	})
}

// observeRequests records every request under its route pattern. Errors are
// rendered here so the recorded status is the one the client sees.
func (s *Server) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		if err := next(ctx); err != nil {
			ctx.Error(err)
		}
		route := ctx.Path()
		if route == "" || ctx.Response().Status == http.StatusNotFound && route == "/*" {
			route = unmatchedRoute
		}
		s.metrics.ObserveHTTP(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
		return nil
	}
}

// handleError renders echo and application errors as an ErrorResponse.
func (s *Server) handleError(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	var (
		status int
		body   apiv2.ErrorResponse
		he     *echo.HTTPError
	)
	if errors.As(err, &he) {
		status = he.Code
		body.Message = fmt.Sprint(he.Message)
		if status >= http.StatusInternalServerError {
			body.Message = apiv2.InternalErrorMessage
		}
	} else {
		status, body = apiv2.NewErrorResponse(err)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("unhandled request error",
			logger.Error(err),
			logger.String("method", ctx.Request().Method),
			logger.String("route", ctx.Path()))
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(status)
	} else {
		err = ctx.JSON(status, body)
	}
	if err != nil {
		s.logger.Warn("failed to write error response", logger.Error(err))
	}
}
