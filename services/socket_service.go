package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/errors"
	"syncx/moderation"
	"syncx/observability"
	"syncx/repositories"
	"syncx/runtime"

	"github.com/google/uuid"
)

type ISocketService interface {
	Connect(ctx context.Context, user chat.User, conn contract.Connection)
	Disconnect(ctx context.Context, conn contract.Connection)
	Handle(ctx context.Context, user chat.User, conn contract.Connection, in event.Inbound) error
}

// Presence binds and unbinds connections while tracking who is online.
type Presence interface {
	Connect(userID string, conn contract.Connection, publish runtime.Publish) []string
	Disconnect(conn contract.Connection, publish runtime.Publish) (userID string, snapshot []string, changed bool)
	Snapshot() []string
}

// MessageQueue takes messages to store after they were fanned out.
type MessageQueue interface {
	Enqueue(message chat.Message) bool
}

// SocketService drives one live connection from handshake to close.
type SocketService struct {
	log       *slog.Logger
	presence  Presence
	router    contract.IRouter
	chats     repositories.IChatRepository
	queue     MessageQueue
	metrics   *observability.Metrics
	moderator *moderation.Moderator
	now       func() time.Time
}

func NewSocketService(
	log *slog.Logger,
	presence Presence,
	router contract.IRouter,
	chats repositories.IChatRepository,
	queue MessageQueue,
	metrics *observability.Metrics,
) *SocketService {
	return &SocketService{
		log:      log,
		presence: presence,
		router:   router,
		chats:    chats,
		queue:    queue,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithModerator censors message drafts before they are fanned out.
func (s *SocketService) WithModerator(moderator *moderation.Moderator) *SocketService {
	s.moderator = moderator
	return s
}

// Connect binds an authenticated connection and broadcasts the new online
// set to everyone.
func (s *SocketService) Connect(ctx context.Context, user chat.User, conn contract.Connection) {
	online := s.presence.Connect(user.ID, conn, s.publishOnline(ctx))
	s.metrics.IncrConnectionOpened()
	s.log.Debug("User connected", "user_id", user.ID, "connection", conn.ID(), "online", len(online))
}

// Disconnect must run once per connection. The online set is broadcast
// only when the user lost its last connection.
func (s *SocketService) Disconnect(ctx context.Context, conn contract.Connection) {
	userID, _, changed := s.presence.Disconnect(conn, s.publishOnline(ctx))
	if userID == "" {
		return
	}
	s.metrics.IncrConnectionClosed()
	s.log.Debug("User disconnected", "user_id", userID, "connection", conn.ID(), "offline", changed)
}

// publishOnline broadcasts under the presence lock. Sinks never block, so
// holding it costs one buffered send per connection.
func (s *SocketService) publishOnline(ctx context.Context) runtime.Publish {
	return func(online []string) {
		s.router.Broadcast(ctx, event.OnlineUsers, online)
	}
}

func (s *SocketService) Handle(ctx context.Context, user chat.User, conn contract.Connection, in event.Inbound) error {
	switch in.Kind {
	case event.NewMessage:
		var draft event.MessageDraft
		if err := decode(in.Data, &draft); err != nil {
			return err
		}
		return s.postMessage(ctx, user, draft)
	case event.StartTyping, event.StopTyping:
		var typing event.Typing
		if err := decode(in.Data, &typing); err != nil {
			return err
		}
		return s.typing(ctx, user, conn, in.Kind, typing)
	case event.GetOnlineUsers:
		s.router.Reply(ctx, conn, event.OnlineUsers, s.presence.Snapshot())
		return nil
	default:
		return errors.ErrValidation.WithMessage("unknown event %q", in.Kind)
	}
}

func decode(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.ErrValidation.WithMessage("malformed payload: %v", err)
	}
	return nil
}

func (s *SocketService) member(chatID, userID string) (chat.Chat, error) {
	c, err := s.chats.Get(chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if !c.IsMember(userID) {
		return chat.Chat{}, errors.ErrNotMember
	}
	return c, nil
}

// postMessage fans the message out first and stores it afterwards. A
// storage failure behind the fan-out is a durability gap, counted by the
// persister.
func (s *SocketService) postMessage(ctx context.Context, user chat.User, draft event.MessageDraft) error {
	cmd := chat.PostMessageCommand{
		ChatID:    draft.ChatID,
		SenderID:  user.ID,
		Content:   draft.Message,
		CreatedAt: s.now(),
	}
	if strings.TrimSpace(cmd.Content) == "" {
		return errors.ErrEmptyMessage
	}
	c, err := s.member(cmd.ChatID, cmd.SenderID)
	if err != nil {
		return err
	}
	review := s.moderator.Review(cmd.Content)
	if len(review.Censored) > 0 {
		s.log.Warn("Message censored", "chat_id", c.ID, "sender_id", cmd.SenderID,
			"words", len(review.Censored), "lang", review.Lang)
	}

	message := chat.Message{
		ID:          uuid.NewString(),
		ChatID:      c.ID,
		SenderID:    cmd.SenderID,
		Content:     review.Text,
		Attachments: []chat.Attachment{},
		CreatedAt:   cmd.CreatedAt,
	}
	realtime := chat.NewRealtimeMessage(message, user.Summary())

	delivery := s.router.Emit(ctx, event.NewMessage, c.Members, event.MessagePayload{ChatID: c.ID, Message: realtime})
	s.router.Emit(ctx, event.NewMessageAlert, c.Members, event.ChatRef{ChatID: c.ID})
	s.log.Debug("Message fanned out", "message_id", message.ID, "chat_id", c.ID,
		"delivered", delivery.Delivered, "dropped", delivery.Dropped)

	s.queue.Enqueue(message)
	return nil
}

func (s *SocketService) typing(ctx context.Context, user chat.User, conn contract.Connection, kind event.Kind, typing event.Typing) error {
	c, err := s.member(typing.ChatID, user.ID)
	if err != nil {
		return err
	}
	s.router.EmitFrom(ctx, conn, kind, c.Others(user.ID), event.ChatRef{ChatID: c.ID})
	return nil
}
