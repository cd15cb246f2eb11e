package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/errors"
	"syncx/moderation"
	"syncx/repositories"

	"github.com/google/uuid"
)

// MaxAttachments caps the files of one attachment message.
const MaxAttachments = 5

type IMessageService interface {
	GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) (chat.MessagePage, error)
	SendAttachments(ctx context.Context, cmd SendAttachmentsCommand) (chat.RealtimeMessage, error)
	DeleteMessage(ctx context.Context, callerID, chatID, messageID string) error
}

type SendAttachmentsCommand struct {
	ChatID   string
	SenderID string
	Caption  string
	Files    []contract.File
}

type MessageService struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	chats     repositories.IChatRepository
	users     repositories.IUserRepository
	blobs     contract.BlobStore
	router    contract.IRouter
	moderator *moderation.Moderator
	now       func() time.Time
}

func NewMessageService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	chats repositories.IChatRepository,
	users repositories.IUserRepository,
	blobs contract.BlobStore,
	router contract.IRouter,
) *MessageService {
	return &MessageService{
		log:      log,
		messages: messages,
		chats:    chats,
		users:    users,
		blobs:    blobs,
		router:   router,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithModerator censors attachment captions.
func (s *MessageService) WithModerator(moderator *moderation.Moderator) *MessageService {
	s.moderator = moderator
	return s
}

func (s *MessageService) membership(chatID, userID string) (chat.Chat, error) {
	c, err := s.chats.Get(chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if !c.IsMember(userID) {
		return chat.Chat{}, errors.ErrNotMember
	}
	return c, nil
}

func (s *MessageService) GetMessages(_ context.Context, cmd chat.GetMessagesCommand) (chat.MessagePage, error) {
	if _, err := s.membership(cmd.ChatID, cmd.UserID); err != nil {
		return chat.MessagePage{}, err
	}
	messages, total, err := s.messages.Page(cmd.ChatID, cmd.Page, chat.PageSize)
	if err != nil {
		return chat.MessagePage{}, fmt.Errorf("page messages: %w", err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return chat.MessagePage{
		Messages:   messages,
		TotalPages: (total + chat.PageSize - 1) / chat.PageSize,
	}, nil
}

// SendAttachments uploads the files, stores the message and then fans it
// out. Uploaded blobs are deleted again if the message cannot be stored.
func (s *MessageService) SendAttachments(ctx context.Context, cmd SendAttachmentsCommand) (chat.RealtimeMessage, error) {
	// 1. Validate the input before any upload
	if len(cmd.Files) == 0 {
		return chat.RealtimeMessage{}, errors.ErrNoFiles
	}
	if len(cmd.Files) > MaxAttachments {
		return chat.RealtimeMessage{}, errors.ErrTooManyFiles
	}
	c, err := s.membership(cmd.ChatID, cmd.SenderID)
	if err != nil {
		return chat.RealtimeMessage{}, err
	}
	sender, err := s.users.Get(cmd.SenderID)
	if err != nil {
		return chat.RealtimeMessage{}, err
	}

	// 2. Upload
	attachments := make([]chat.Attachment, 0, len(cmd.Files))
	for _, file := range cmd.Files {
		attachment, err := s.blobs.Upload(ctx, file)
		if err != nil {
			s.discard(ctx, attachments)
			return chat.RealtimeMessage{}, fmt.Errorf("upload %s: %w", file.Name, err)
		}
		attachments = append(attachments, attachment)
	}

	// 3. Store synchronously, then notify
	message := chat.Message{
		ID:          uuid.NewString(),
		ChatID:      c.ID,
		SenderID:    sender.ID,
		Content:     s.moderator.Review(cmd.Caption).Text,
		Attachments: attachments,
		CreatedAt:   s.now(),
	}
	if err = s.messages.Store(message); err != nil {
		s.discard(ctx, attachments)
		return chat.RealtimeMessage{}, fmt.Errorf("store message: %w", err)
	}

	realtime := chat.NewRealtimeMessage(message, sender.Summary())
	s.router.Emit(ctx, event.NewMessage, c.Members, event.MessagePayload{ChatID: c.ID, Message: realtime})
	s.router.Emit(ctx, event.NewMessageAlert, c.Members, event.ChatRef{ChatID: c.ID})
	return realtime, nil
}

func (s *MessageService) discard(ctx context.Context, attachments []chat.Attachment) {
	if len(attachments) == 0 {
		return
	}
	ids := make([]string, 0, len(attachments))
	for _, a := range attachments {
		ids = append(ids, a.PublicID)
	}
	if err := s.blobs.Delete(ctx, ids...); err != nil {
		s.log.Warn("Unable to discard uploaded attachments", "count", len(ids), "error", err)
	}
}

func (s *MessageService) DeleteMessage(ctx context.Context, callerID, chatID, messageID string) error {
	c, err := s.membership(chatID, callerID)
	if err != nil {
		return err
	}
	message, err := s.messages.Get(messageID)
	if err != nil {
		return err
	}
	if message.ChatID != chatID {
		return errors.ErrMessageNotFound
	}
	if message.SenderID != callerID {
		return errors.ErrNotSender
	}

	if _, err = s.messages.Delete(messageID); err != nil {
		return err
	}
	s.discard(ctx, message.Attachments)

	s.router.Emit(ctx, event.Alert, c.Members, event.AlertPayload{ChatID: chatID, Message: "A message has been deleted"})
	return nil
}
