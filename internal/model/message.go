package model

import "time"

type MessageStatus string

// Status moves strictly forward: sent|queued -> delivered -> seen.
// "queued" means the recipient was offline at persistence time; a direct
// queued -> seen transition is allowed (read after offline replay).
const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusSeen      MessageStatus = "seen"
)

// StatusRank orders statuses for the monotonic-transition check.
// sent and queued share a rank: both mean "not yet delivered".
func StatusRank(s MessageStatus) int {
	switch s {
	case MessageStatusDelivered:
		return 1
	case MessageStatusSeen:
		return 2
	default:
		return 0
	}
}

type Message struct {
	ID           string        `json:"message_id"` // client-generated, idempotency key
	ChatID       string        `json:"chat_id"`
	SenderID     string        `json:"sender_id"`
	RecipientID  string        `json:"recipient_id"`
	Text         string        `json:"text"` // post-translation, what the recipient sees
	OriginalText string        `json:"original_text"`
	Status       MessageStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	DeliveredAt  *time.Time    `json:"delivered_at,omitempty"`
	SeenAt       *time.Time    `json:"seen_at,omitempty"`
}
