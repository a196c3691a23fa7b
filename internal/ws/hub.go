// Package ws is the WebSocket transport: connection lifecycle, event
// framing and dispatch into the delivery core. Routing decisions live in
// internal/delivery; this package only moves bytes and enforces the
// connection limit.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jisero/internal/delivery"
	"github.com/jisero/internal/event"
	"github.com/jisero/internal/logger"
)

const handleTimeout = 5 * time.Second

type Hub struct {
	svc *delivery.Service

	mu       sync.Mutex
	conns    map[*Client]struct{}
	maxConns int
	closed   bool
}

func NewHub(svc *delivery.Service, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		svc:      svc,
		conns:    make(map[*Client]struct{}),
		maxConns: maxConns,
	}
}

// ServeConn takes ownership of an upgraded connection and runs its pumps
// until disconnect. Over the connection limit the socket is dropped.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	client := NewClient(h, conn)

	h.mu.Lock()
	if h.closed || len(h.conns) >= h.maxConns {
		limit := h.maxConns
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting", limit)
		conn.Close()
		return
	}
	h.conns[client] = struct{}{}
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	client.Start(ctx, cancel)
}

// disconnect is called by the read pump on exit.
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	_, tracked := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if !tracked {
		return
	}

	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	h.svc.Leave(ctx, c)
}

// Shutdown closes every connection and waits for their pumps to drain.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	all := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

// HandleEvent dispatches an incoming event. Everything except join requires
// a bound user.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, ev event.Incoming) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if ev.Type == event.TypeJoin {
		h.handleJoin(ctx, c, ev)
		return
	}

	userID := c.UserID()
	if userID == "" {
		c.Send(event.Outgoing{Type: event.TypeError, Payload: "join required"})
		return
	}

	switch ev.Type {
	case event.TypeSend:
		h.handleSend(ctx, c, userID, ev)
	case event.TypeAckDelivered:
		h.svc.AckDelivered(ctx, ev.MessageID)
	case event.TypeAckSeen:
		h.svc.AckSeen(ctx, ev.MessageID)
	case event.TypeFindUser:
		h.svc.FindUser(ctx, c, ev.UserID)
	case event.TypeTyping:
		h.svc.Typing(userID, ev.RecipientID, ev.Typing)
	default:
		c.Send(event.Outgoing{Type: event.TypeError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, ev event.Incoming) {
	defer logger.DeferLogDuration("ws.handleJoin", time.Now())()
	if ev.UserID == "" {
		c.Send(event.Outgoing{Type: event.TypeError, Payload: "user_id required"})
		return
	}
	if err := h.svc.Join(ctx, ev.UserID, c); err != nil {
		if errors.Is(err, delivery.ErrUserNotFound) {
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "unknown user, register first"})
		} else if errors.Is(err, delivery.ErrAlreadyJoined) {
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "already joined as another user"})
		} else {
			logger.Errorf("ws join user=%s: %v", ev.UserID, err)
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "internal error"})
		}
		return
	}
	c.setUserID(ev.UserID)
}

func (h *Hub) handleSend(ctx context.Context, c *Client, userID string, ev event.Incoming) {
	defer logger.DeferLogDuration("ws.handleSend", time.Now())()
	msg, err := h.svc.Send(ctx, userID, ev.RecipientID, ev.MessageID, ev.Text)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrEmptyMessage):
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "message text required"})
		case errors.Is(err, delivery.ErrMessageTooLong):
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "message too long"})
		case errors.Is(err, delivery.ErrRecipientNotFound):
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "recipient not found"})
		default:
			logger.Errorf("ws send user=%s: %v", userID, err)
			c.Send(event.Outgoing{Type: event.TypeError, Payload: "failed to send message"})
		}
		return
	}
	c.Send(event.Outgoing{
		Type: event.TypeMessageAccepted,
		Payload: event.AcceptedPayload{
			MessageID: msg.ID,
			ChatID:    msg.ChatID,
			Status:    msg.Status,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt,
		},
	})
}
