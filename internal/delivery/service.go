// Package delivery implements presence-aware message routing: live push to
// connected recipients, durable queuing for offline ones, acknowledgement
// tracking and replay of the pending backlog on reconnect.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jisero/internal/event"
	"github.com/jisero/internal/logger"
	"github.com/jisero/internal/model"
	"github.com/jisero/internal/presence"
	"github.com/jisero/internal/repository"
	"github.com/jisero/internal/translate"
)

var (
	ErrUserNotFound      = errors.New("user not registered")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrEmptyMessage      = errors.New("message text is empty")
	ErrMessageTooLong    = errors.New("message text too long")
	ErrAlreadyJoined     = errors.New("connection already joined as another user")
)

// UserStore is the user persistence the delivery core needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	SetOnline(ctx context.Context, userID string, online bool) error
}

// ChatStore resolves and maintains the per-pair conversation rows.
type ChatStore interface {
	FindOrCreate(ctx context.Context, userA, userB string) (*model.Chat, error)
	Touch(ctx context.Context, chatID string, at time.Time) error
}

// MessageStore is the durable message log.
type MessageStore interface {
	Save(ctx context.Context, m *model.Message) (*model.Message, bool, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
	UpdateStatus(ctx context.Context, id string, status model.MessageStatus, at time.Time) (int64, error)
	FindPending(ctx context.Context, recipientID string) ([]model.Message, error)
	PruneQueued(ctx context.Context, recipientID string, keep int) (int64, error)
}

// Translator is the translation collaborator. Both methods are best-effort
// from the caller's point of view: a failed translation falls back to the
// original text, never fails the send.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (translate.Result, error)
	Detect(ctx context.Context, text string) string
}

// Notifier nudges an offline recipient out-of-band.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]string)
}

const (
	DefaultMaxTextLen = 1000
	DefaultQueueCap   = 100

	// DefaultTranslateTimeout bounds the whole detect+translate step inside
	// Send. It must stay below the transport's per-event budget so that
	// persistence still has headroom after a stalled provider.
	DefaultTranslateTimeout = 3 * time.Second
)

// Service wires the presence registry, the stores and the collaborators
// into the message path. All methods are safe for concurrent use.
type Service struct {
	registry *presence.Registry
	users    UserStore
	chats    ChatStore
	messages MessageStore
	tr       Translator
	notifier Notifier

	maxTextLen       int
	queueCap         int
	translateTimeout time.Duration
}

type Option func(*Service)

func WithMaxTextLen(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTextLen = n
		}
	}
}

func WithQueueCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueCap = n
		}
	}
}

func WithTranslateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.translateTimeout = d
		}
	}
}

func NewService(registry *presence.Registry, users UserStore, chats ChatStore, messages MessageStore, tr Translator, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		registry:         registry,
		users:            users,
		chats:            chats,
		messages:         messages,
		tr:               tr,
		notifier:         notifier,
		maxTextLen:       DefaultMaxTextLen,
		queueCap:         DefaultQueueCap,
		translateTimeout: DefaultTranslateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join binds a registered user to a live connection. The previous connection
// of the same user, if any, is closed (reconnect replaces it). A connection
// already bound to a different user cannot join again: that would strand the
// first identity as permanently online. The new connection gets the presence
// snapshot and a join confirmation, everyone else gets user_online, and the
// pending backlog is replayed.
func (s *Service) Join(ctx context.Context, userID string, conn presence.Conn) error {
	if bound, ok := s.registry.UserFor(conn); ok && bound != userID {
		return ErrAlreadyJoined
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delivery.Join: %w", err)
	}

	if evicted := s.registry.Register(u.Summary(), conn); evicted != nil {
		evicted.Close()
	}
	if err := s.users.SetOnline(ctx, userID, true); err != nil {
		logger.Errorf("delivery.Join: set online %s: %v", userID, err)
	}

	s.registry.Broadcast(event.Outgoing{
		Type:    event.TypeUserOnline,
		Payload: event.PresencePayload{UserID: u.ID, Username: u.Username, Avatar: u.Avatar, Online: true},
	}, userID)

	conn.Send(event.Outgoing{
		Type:    event.TypeOnlineUsers,
		Payload: event.OnlineUsersPayload{Users: s.registry.Snapshot()},
	})
	conn.Send(event.Outgoing{
		Type:    event.TypeJoined,
		Payload: event.JoinedPayload{UserID: u.ID},
	})

	s.Replay(ctx, userID, conn)
	return nil
}

// Leave unbinds conn. When the connection was the user's current one the
// user goes offline and everyone is told; an already evicted handle changes
// nothing (the user is still online through the newer connection).
func (s *Service) Leave(ctx context.Context, conn presence.Conn) {
	userID, nowOffline := s.registry.Unregister(conn)
	if userID == "" || !nowOffline {
		return
	}
	if err := s.users.SetOnline(ctx, userID, false); err != nil {
		logger.Errorf("delivery.Leave: set offline %s: %v", userID, err)
	}
	s.registry.Broadcast(event.Outgoing{
		Type:    event.TypeUserOffline,
		Payload: event.PresencePayload{UserID: userID, Online: false},
	}, userID)
}

// Send routes a message from sender to recipient. The recipient must exist
// before anything is persisted. The text is translated into the recipient's
// preferred language when the detected source language differs; translation
// failure falls back to the original text. An online recipient gets a live
// push and the message stays "sent" until their explicit acknowledgement;
// an offline recipient's message is queued, the backlog capped, and a push
// notification fired. Resending an already known message id returns the
// stored message without a second push.
func (s *Service) Send(ctx context.Context, senderID, recipientID, messageID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.maxTextLen {
		return nil, ErrMessageTooLong
	}
	if senderID == recipientID {
		return nil, ErrRecipientNotFound
	}

	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("delivery.Send: recipient lookup: %w", err)
	}

	chat, err := s.chats.FindOrCreate(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("delivery.Send: %w", err)
	}

	if messageID == "" {
		messageID = "msg-" + uuid.New().String()
	}

	displayText, originalText := s.translateFor(ctx, text, recipient.PreferredLanguage)

	now := time.Now().UTC()
	online := s.registry.IsOnline(recipientID)
	status := model.MessageStatusSent
	if !online {
		status = model.MessageStatusQueued
	}

	msg := &model.Message{
		ID:           messageID,
		ChatID:       chat.ID,
		SenderID:     senderID,
		RecipientID:  recipientID,
		Text:         displayText,
		OriginalText: originalText,
		Status:       status,
		CreatedAt:    now,
	}
	saved, inserted, err := s.messages.Save(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("delivery.Send: %w", err)
	}
	if !inserted {
		// Retransmission: the first accept already pushed or queued it.
		return saved, nil
	}

	if err := s.chats.Touch(ctx, chat.ID, now); err != nil {
		logger.Errorf("delivery.Send: touch chat %s: %v", chat.ID, err)
	}

	if online {
		s.registry.Send(recipientID, event.Outgoing{
			Type: event.TypeMessage,
			Payload: event.MessagePayload{
				MessageID:    saved.ID,
				ChatID:       saved.ChatID,
				SenderID:     saved.SenderID,
				Text:         saved.Text,
				OriginalText: saved.OriginalText,
				CreatedAt:    saved.CreatedAt,
			},
		})
	} else {
		if evicted, err := s.messages.PruneQueued(ctx, recipientID, s.queueCap); err != nil {
			logger.Errorf("delivery.Send: prune queue for %s: %v", recipientID, err)
		} else if evicted > 0 {
			logger.Infof("delivery.Send: evicted %d oldest pending for %s (cap %d)", evicted, recipientID, s.queueCap)
		}
		if s.notifier != nil {
			sender, err := s.users.GetByID(ctx, senderID)
			title := "New message"
			if err == nil {
				title = "Message from " + sender.Username
			}
			go s.notifier.Notify(context.WithoutCancel(ctx), recipientID, title, saved.Text,
				map[string]string{"chat_id": saved.ChatID, "sender_id": senderID})
		}
	}
	return saved, nil
}

// AckDelivered records the recipient's delivery acknowledgement and, when it
// advanced the status, relays delivered_ack to the sender if online.
func (s *Service) AckDelivered(ctx context.Context, messageID string) {
	s.ack(ctx, messageID, model.MessageStatusDelivered, event.TypeDeliveredAck)
}

// AckSeen records the recipient's read acknowledgement and relays seen_ack
// to the sender if online. Seen may arrive without a prior delivered ack.
func (s *Service) AckSeen(ctx context.Context, messageID string) {
	s.ack(ctx, messageID, model.MessageStatusSeen, event.TypeSeenAck)
}

func (s *Service) ack(ctx context.Context, messageID string, status model.MessageStatus, ackType event.Type) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Evicted from the queue or never existed; acks are droppable.
			logger.Infof("delivery.ack: %s for unknown message %s, dropped", status, messageID)
			return
		}
		logger.Errorf("delivery.ack: lookup %s: %v", messageID, err)
		return
	}
	at := time.Now().UTC()
	rows, err := s.messages.UpdateStatus(ctx, messageID, status, at)
	if err != nil {
		logger.Errorf("delivery.ack: update %s to %s: %v", messageID, status, err)
		return
	}
	if rows == 0 {
		// Duplicate or retrograde ack; status only moves forward.
		return
	}
	s.registry.Send(msg.SenderID, event.Outgoing{
		Type:    ackType,
		Payload: event.AckPayload{MessageID: msg.ID, ChatID: msg.ChatID, At: at},
	})
}

// Replay pushes the recipient's pending backlog, oldest first, over conn and
// marks each pushed message delivered on the recipient's behalf. Delivery is
// at-least-once: a crash between push and mark re-replays on the next join.
func (s *Service) Replay(ctx context.Context, userID string, conn presence.Conn) {
	pending, err := s.messages.FindPending(ctx, userID)
	if err != nil {
		logger.Errorf("delivery.Replay: pending for %s: %v", userID, err)
		return
	}
	if len(pending) == 0 {
		return
	}
	logger.Infof("delivery.Replay: %d pending for %s", len(pending), userID)
	for i := range pending {
		m := &pending[i]
		ok := conn.Send(event.Outgoing{
			Type: event.TypeMessage,
			Payload: event.MessagePayload{
				MessageID:    m.ID,
				ChatID:       m.ChatID,
				SenderID:     m.SenderID,
				Text:         m.Text,
				OriginalText: m.OriginalText,
				CreatedAt:    m.CreatedAt,
			},
		})
		if !ok {
			// Connection gone or saturated; the rest stays pending.
			logger.Errorf("delivery.Replay: push to %s failed at %s, aborting", userID, m.ID)
			return
		}
		s.AckDelivered(ctx, m.ID)
	}
}

// FindUser resolves a user id for the asking connection, answering with
// user_found or user_not_found. The online flag comes from the registry.
func (s *Service) FindUser(ctx context.Context, conn presence.Conn, targetID string) {
	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("delivery.FindUser: %s: %v", targetID, err)
		}
		conn.Send(event.Outgoing{
			Type:    event.TypeUserNotFound,
			Payload: event.UserNotFoundPayload{UserID: targetID},
		})
		return
	}
	conn.Send(event.Outgoing{
		Type: event.TypeUserFound,
		Payload: event.UserFoundPayload{
			UserID:     u.ID,
			Username:   u.Username,
			Avatar:     u.Avatar,
			Online:     s.registry.IsOnline(u.ID),
			LastSeenAt: u.LastSeenAt,
		},
	})
}

// Typing forwards a typing indicator to the recipient, if online. Indicators
// are ephemeral: nothing is stored and nothing is queued.
func (s *Service) Typing(fromUserID, toUserID string, typing bool) {
	s.registry.Send(toUserID, event.Outgoing{
		Type:    event.TypeTyping,
		Payload: event.TypingPayload{UserID: fromUserID, Typing: typing},
	})
}

// translateFor returns the display text for the recipient and, when a
// translation happened, the original. Detection runs first so same-language
// messages skip the provider round-trip entirely.
func (s *Service) translateFor(ctx context.Context, text, preferredLang string) (displayText, originalText string) {
	if s.tr == nil || preferredLang == "" {
		return text, ""
	}
	// Translation runs under its own budget, detached from the caller's
	// deadline: a stalled provider must not eat the time persistence needs,
	// and must never fail the send (the fallback is the original text).
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.translateTimeout)
	defer cancel()

	source := s.tr.Detect(tctx, text)
	if source == strings.ToLower(preferredLang) {
		return text, ""
	}
	res, err := s.tr.Translate(tctx, text, preferredLang)
	if err != nil || res.Text == "" {
		logger.Errorf("delivery: translate to %s failed, keeping original: %v", preferredLang, err)
		return text, ""
	}
	return res.Text, text
}
