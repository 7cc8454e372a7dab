package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/realtime"
	"github.com/shinyyama/lynxx-backend/internal/reqctx"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

type RealtimeHandler struct {
	hub      *realtime.Hub
	convs    service.ConversationService
	reads    service.ReadService
	upgrader websocket.Upgrader
}

// NewRealtimeHandler uses checkOrigin for the websocket handshake; nil keeps the
// gorilla default of same-origin only.
func NewRealtimeHandler(hub *realtime.Hub, convs service.ConversationService, reads service.ReadService, checkOrigin func(*http.Request) bool) *RealtimeHandler {
	return &RealtimeHandler{
		hub:   hub,
		convs: convs,
		reads: reads,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Subscribe upgrades to a websocket streaming events of one topic. A viewer of a
// conversation gets its inbound messages marked read as they arrive.
func (h *RealtimeHandler) Subscribe(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	topic := c.QueryParam("topic")
	kind, key, err := realtime.ParseTopic(topic)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid topic"))
	}
	ctx := c.Request().Context()
	var convID uint64
	switch kind {
	case "conversation":
		convID, _ = strconv.ParseUint(key, 10, 64)
		if _, err := h.convs.Get(ctx, convID, uid); err != nil {
			return writeError(c, err)
		}
	case "inbox":
		if key != uid {
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not your inbox"))
		}
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already answered the client
		return nil
	}
	defer conn.Close()

	sub := h.hub.Subscribe(topic)
	defer sub.Close()
	logger := log.With().Str("rid", reqctx.RID(ctx)).Str("uid", uid).Str("topic", topic).Logger()
	logger.Debug().Msg("realtime subscribed")

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if convID != 0 {
		h.markRead(ctx, convID, uid)
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			logger.Debug().Msg("realtime closed by client")
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug().Err(err).Msg("realtime write failed")
				return nil
			}
			if convID != 0 && ev.Kind == realtime.EventMessageInserted && ev.RecipientUID == uid {
				h.markRead(ctx, convID, uid)
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func (h *RealtimeHandler) markRead(ctx context.Context, convID uint64, uid string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := h.reads.MarkConversationRead(ctx, convID, uid); err != nil {
		log.Warn().Err(err).Str("rid", reqctx.RID(ctx)).Uint64("conversation_id", convID).Msg("auto mark read failed")
	}
}
