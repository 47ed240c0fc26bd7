package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/edupresencia/fichai/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxMsgSize = 1024
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin rejects browser upgrades from another host. Clients without an
// Origin header are let through; the session check still applies.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// initStreamRoutes registers the live outcome websocket.
func (c *Controller) initStreamRoutes(g *echo.Group) {
	g.GET("/alerts/stream", c.StreamAlerts)
}

// StreamAlerts pushes engine outcomes as JSON text frames. Admins receive
// their institution's outcomes, superadmins every outcome.
func (c *Controller) StreamAlerts(ctx echo.Context) error {
	user := currentUser(ctx)

	conn, err := streamUpgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		c.logger.Warn("failed to upgrade alert stream", logger.Error(err))
		return nil
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(streamMaxMsgSize)

	id := uuid.NewString()
	outcomes := c.hub.Subscribe(id)
	defer c.hub.Unsubscribe(id)

	c.logger.Info("alert stream opened",
		logger.String("stream_id", id),
		logger.String("user_id", user.ID),
		logger.String("institution_id", user.InstitutionID))
	defer c.logger.Info("alert stream closed", logger.String("stream_id", id))

	// Client frames are discarded; reading keeps pong handling and close
	// detection running.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	// This loop is the only writer on conn.
	for {
		select {
		case outcome, ok := <-outcomes:
			if !ok {
				return nil
			}
			if !user.CanAccess(outcome.InstitutionID) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(outcome); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		case <-c.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return nil
		}
	}
}
