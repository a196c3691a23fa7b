// Package event defines the WebSocket events exchanged between clients and
// the delivery core. The payload shapes are the wire contract; transport
// framing belongs to internal/ws.
package event

import (
	"time"

	"github.com/jisero/internal/model"
)

type Type string

// Inbound events (client -> server).
const (
	TypeJoin         Type = "join"
	TypeSend         Type = "send"
	TypeAckDelivered Type = "ack_delivered"
	TypeAckSeen      Type = "ack_seen"
	TypeFindUser     Type = "find_user"
	TypeTyping       Type = "typing"
)

// Outbound events (server -> client).
const (
	TypeJoined          Type = "joined"
	TypeUserOnline      Type = "user_online"
	TypeUserOffline     Type = "user_offline"
	TypeOnlineUsers     Type = "online_users"
	TypeMessage         Type = "message"
	TypeMessageAccepted Type = "message_accepted"
	TypeDeliveredAck    Type = "delivered_ack"
	TypeSeenAck         Type = "seen_ack"
	TypeUserFound       Type = "user_found"
	TypeUserNotFound    Type = "user_not_found"
	TypeError           Type = "error"
)

// Incoming is what the client sends to the server. Profile data (username,
// avatar) travels over HTTP registration, never over the socket.
type Incoming struct {
	Type Type `json:"type"`

	// For join and find_user
	UserID string `json:"user_id,omitempty"`

	// For send; MessageID doubles as the ack target, RecipientID as the
	// typing target.
	MessageID   string `json:"message_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Text        string `json:"text,omitempty"`

	// For typing
	Typing bool `json:"typing,omitempty"`
}

// Outgoing is what the server sends to the client.
// Payload uses typed structs to avoid map[string]any allocations.
type Outgoing struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

// --- Typed payloads ---

// JoinedPayload confirms a successful join.
type JoinedPayload struct {
	UserID string `json:"user_id"`
}

// PresencePayload is broadcast on user_online / user_offline.
type PresencePayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Online   bool   `json:"online"`
}

// OnlineUsersPayload seeds a newly joined client's presence view.
type OnlineUsersPayload struct {
	Users []model.UserSummary `json:"users"`
}

// MessagePayload carries a pushed (live or replayed) message.
type MessagePayload struct {
	MessageID    string    `json:"message_id"`
	ChatID       string    `json:"chat_id"`
	SenderID     string    `json:"sender_id"`
	Text         string    `json:"text"`
	OriginalText string    `json:"original_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AckPayload relays a delivered/seen acknowledgement to the sender.
type AckPayload struct {
	MessageID string    `json:"message_id"`
	ChatID    string    `json:"chat_id"`
	At        time.Time `json:"at"`
}

// AcceptedPayload acknowledges a send back to its sender.
type AcceptedPayload struct {
	MessageID string              `json:"message_id"`
	ChatID    string              `json:"chat_id"`
	Status    model.MessageStatus `json:"status"`
	Text      string              `json:"text"`
	CreatedAt time.Time           `json:"created_at"`
}

// UserNotFoundPayload answers find_user for an unknown id.
type UserNotFoundPayload struct {
	UserID string `json:"user_id"`
}

// UserFoundPayload answers find_user.
type UserFoundPayload struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Avatar     string    `json:"avatar"`
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// TypingPayload forwards a typing indicator to the recipient.
type TypingPayload struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}
