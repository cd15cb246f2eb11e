package services

import (
	"context"
	"fmt"
	"log/slog"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/repositories"
)

// purger removes a chat for good: its messages, the blobs they reference,
// the group image and finally the chat record. Blob failures are logged only,
// the store being the source of truth.
type purger struct {
	log      *slog.Logger
	chats    repositories.IChatRepository
	messages repositories.IMessageRepository
	blobs    contract.BlobStore
}

func (p purger) purge(ctx context.Context, c chat.Chat) error {
	messages, err := p.messages.DeleteByChat(c.ID)
	if err != nil {
		return fmt.Errorf("purge messages of chat %s: %w", c.ID, err)
	}
	publicIDs := chat.PublicIDs(messages)
	if c.Image != nil && c.Image.PublicID != "" {
		publicIDs = append(publicIDs, c.Image.PublicID)
	}
	p.deleteBlobs(ctx, publicIDs...)

	if err = p.chats.Delete(c.ID); err != nil {
		return fmt.Errorf("delete chat %s: %w", c.ID, err)
	}
	p.log.Info("Chat purged", "chat_id", c.ID, "messages", len(messages), "blobs", len(publicIDs))
	return nil
}

func (p purger) deleteBlobs(ctx context.Context, publicIDs ...string) {
	if len(publicIDs) == 0 {
		return
	}
	if err := p.blobs.Delete(ctx, publicIDs...); err != nil {
		p.log.Warn("Unable to delete blobs", "count", len(publicIDs), "error", err)
	}
}
