// Real-time subscription handlers.
//
// This file exposes the WebSocket streams that push lifecycle events to
// connected clients:
//   - GET /ws/sessions                  (new unmatched sessions, volunteers)
//   - GET /ws/sessions/{id}/accepted    (a waiting client learns a volunteer arrived)
//   - GET /ws/sessions/{id}/messages    (new messages within a session)
//
// Each connection is one broker subscription with a per-subscriber predicate.
// Predicates run at delivery time, so a block recorded after the subscription
// was opened still filters subsequent events. A predicate error drops that
// event for that subscriber only; the broker logs it.
//
// Slow consumers are dropped rather than allowed to stall the publisher: the
// subscription buffer absorbs bursts, and beyond that events are discarded.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/calmbridge/support-chat-backend/internal/domain"
	"github.com/calmbridge/support-chat-backend/internal/http/middleware"
	"github.com/calmbridge/support-chat-backend/internal/pubsub"
	"github.com/calmbridge/support-chat-backend/internal/repo"
	"github.com/calmbridge/support-chat-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens at the CORS layer / reverse proxy; the API
	// is token-authenticated, not cookie-authenticated, so cross-origin
	// upgrades carry no ambient credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

// StreamEvent is the JSON envelope for every pushed event.
type StreamEvent struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// StreamNewSessions handles GET /ws/sessions?chat_type=: a volunteer's live
// feed of sessions entering the unmatched pool. Sessions from clients the
// volunteer has blocked are filtered out at delivery time.
func (h *Handlers) StreamNewSessions(c *gin.Context) {
	cl := caller(c)
	if !cl.IsVolunteer() {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "volunteers only")
		return
	}
	chatType, valid := chatTypeParam(c.Query("chat_type"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_type must be regular or roleplay")
		return
	}

	filter := func(ctx context.Context, payload any) (bool, error) {
		chat, okc := payload.(*domain.Chat)
		if !okc || chat.ChatType != chatType {
			return false, nil
		}
		blocked, err := h.blockSvc.BlockedIDs(ctx, cl.ID)
		if err != nil {
			return false, err
		}
		return !services.IsBlocked(chat.ClientID, blocked), nil
	}
	h.stream(c, pubsub.TopicChatCreated, filter)
}

// StreamAccepted handles GET /ws/sessions/{id}/accepted: pushes the session
// once a volunteer claims it. Only participants may subscribe.
func (h *Handlers) StreamAccepted(c *gin.Context) {
	chatID := c.Param("id")
	if !h.canWatchSession(c, chatID) {
		return
	}

	filter := func(_ context.Context, payload any) (bool, error) {
		chat, okc := payload.(*domain.Chat)
		return okc && chat.ID == chatID, nil
	}
	h.stream(c, pubsub.TopicChatAccepted, filter)
}

// StreamMessages handles GET /ws/sessions/{id}/messages: pushes each message
// persisted in the session. For volunteer subscribers, messages from senders
// they have since blocked are dropped at delivery time.
func (h *Handlers) StreamMessages(c *gin.Context) {
	chatID := c.Param("id")
	cl := caller(c)
	if !h.canWatchSession(c, chatID) {
		return
	}

	filter := func(ctx context.Context, payload any) (bool, error) {
		msg, okm := payload.(*domain.Message)
		if !okm || msg.ChatID != chatID {
			return false, nil
		}
		if !cl.IsVolunteer() {
			return true, nil
		}
		blocked, err := h.blockSvc.BlockedIDs(ctx, cl.ID)
		if err != nil {
			return false, err
		}
		return !services.IsBlocked(msg.SenderID, blocked), nil
	}
	h.stream(c, pubsub.TopicMessageCreated, filter)
}

// canWatchSession verifies the caller participates in the session (or that the
// session is still unmatched and the caller is its client or a volunteer).
// It writes the error response itself and reports whether to proceed.
func (h *Handlers) canWatchSession(c *gin.Context, chatID string) bool {
	cl := caller(c)

	chat, err := repo.GetChatBare(c.Request.Context(), h.DB, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return false
		}
		fail(c, http.StatusInternalServerError, ErrCodeSessionFailed, err.Error())
		return false
	}
	if chat.IsParticipant(cl.ID) {
		return true
	}
	// An unmatched session is visible to any volunteer who might claim it.
	if chat.VolunteerID == nil && cl.IsVolunteer() {
		return true
	}
	fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant")
	return false
}

// stream upgrades the connection, subscribes to topic with the given
// predicate, and pumps events until either side goes away.
func (h *Handlers) stream(c *gin.Context, topic pubsub.Topic, filter pubsub.FilterFunc) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		return
	}

	sub := h.Broker.Subscribe(topic, filter)
	lg := middleware.LoggerFrom(c)

	defer func() {
		sub.Close()
		_ = conn.Close()
	}()

	// Read pump: the client sends nothing meaningful, but reading is how we
	// notice the peer going away and how pong frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1 << 10)
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

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, okc := <-sub.Events():
			if !okc {
				// Broker shut down.
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(StreamEvent{Topic: string(topic), Data: ev}); err != nil {
				lg.Debug().Err(err).Str("topic", string(topic)).Msg("ws write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
