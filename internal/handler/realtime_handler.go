package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/models"
	"github.com/oasistrek/tourops-api/internal/realtime"
	"github.com/oasistrek/tourops-api/internal/service"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/response"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongDelay  = 90 * time.Second
	wsPingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RealtimeHandler streams coalesced collection updates over a websocket.
type RealtimeHandler struct {
	auth   *service.AuthService
	feed   *realtime.Feed
	logger *zap.Logger
}

// NewRealtimeHandler constructs RealtimeHandler.
func NewRealtimeHandler(auth *service.AuthService, feed *realtime.Feed, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeHandler{auth: auth, feed: feed, logger: logger}
}

// Changes godoc
// @Summary Subscribe to collection changes
// @Description Upgrades to a websocket and streams version updates for the watched collections
// @Tags Realtime
// @Param token query string true "Access token"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ws/changes [get]
func (h *RealtimeHandler) Changes(c *gin.Context) {
	// Browsers cannot set Authorization headers on websocket dials, so the
	// access token rides in the query string.
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token is required"))
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !claims.Role.Staff() {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	socket, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer socket.Close() //nolint:errcheck

	updates, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	// First frame carries the current token per collection so the client can
	// reconcile anything it missed before the socket opened.
	if err := h.writeUpdates(socket, h.feed.Snapshot()); err != nil {
		return
	}

	socket.SetReadDeadline(time.Now().Add(wsPongDelay)) //nolint:errcheck
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(wsPongDelay))
	})
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	// Read pump: the client never sends data frames, but reading is the only
	// way to notice a close or a missed pong.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := socket.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := socket.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.logger.Debug("failed to write ping", zap.Error(err))
				return
			}
		case batch, ok := <-updates:
			if !ok {
				return
			}
			if err := h.writeUpdates(socket, batch); err != nil {
				h.logger.Debug("failed to write updates", zap.Error(err))
				return
			}
		}
	}
}

func (h *RealtimeHandler) writeUpdates(socket *websocket.Conn, updates []models.CollectionUpdate) error {
	if err := socket.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return socket.WriteJSON(updates)
}
