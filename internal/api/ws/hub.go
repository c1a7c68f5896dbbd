// Package ws streams published audit and escalation events to live review
// clients over WebSocket.
package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/escalation"
	"github.com/gosuda/prime/internal/server/middleware"
)

// Subscriber delivers messages published on a channel. *redis.PubSub
// satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub manages WebSocket connections backed by pub/sub.
type Hub struct {
	pubsub Subscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(pubsub Subscriber) *Hub {
	return &Hub{pubsub: pubsub}
}

// ServeAudit streams every recorded audit event as JSON text frames.
func (h *Hub) ServeAudit(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, audit.Channel)
}

// ServeEscalations streams escalation ticket created and updated events.
func (h *Hub) ServeEscalations(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, escalation.Channel)
}

func (h *Hub) stream(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles their control frames and cancels
	// ctx when they go away.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	ev := log.Debug().Str("channel", channel)
	if u, ok := middleware.UserFromContext(r.Context()); ok {
		ev = ev.Str("user_id", u.ID)
	}
	ev.Msg("websocket subscribed")

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
