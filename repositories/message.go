//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"

	"syncx/domain/chat"
	"syncx/errors"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	Store(message chat.Message) error
	Get(id string) (chat.Message, error)
	Delete(id string) (chat.Message, error)
	Page(chatID string, page, size int) ([]chat.Message, int, error)
	DeleteByChat(chatID string) ([]chat.Message, error)
	DeleteBySender(senderID string) ([]chat.Message, error)
	Count() (int, error)
	List() ([]chat.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// messageKey is formatted as "msg:{chat_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the id as a collision breaker if two messages
//     arrive at the same nanosecond.
func messageKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID))
}

func chatMessagesPrefix(chatID string) []byte { return []byte("msg:" + chatID + ":") }

// messageIDKey points from a message id to its primary key.
func messageIDKey(id string) []byte { return []byte("msgid:" + id) }

// Store persists a message and its id index.
func (m *MessageRepository) Store(message chat.Message) error {
	return m.db.Update(func(txn *badger.Txn) error {
		key := messageKey(message)
		if err := set(txn, key, message); err != nil {
			return err
		}
		return txn.Set(messageIDKey(message.ID), key)
	})
}

func (m *MessageRepository) Get(id string) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		key, err := primaryKey(txn, id)
		if err != nil {
			return err
		}
		return get(txn, key, &message, errors.ErrMessageNotFound)
	})
	return message, err
}

func primaryKey(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(messageIDKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Delete removes one message and returns it so the caller can clean up its
// attachments.
func (m *MessageRepository) Delete(id string) (chat.Message, error) {
	var message chat.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		key, err := primaryKey(txn, id)
		if err != nil {
			return err
		}
		if err = get(txn, key, &message, errors.ErrMessageNotFound); err != nil {
			return err
		}
		if err = txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(messageIDKey(id))
	})
	return message, err
}

// Page returns one page of a chat history and the total message count.
// Page 1 holds the newest messages; each page is returned oldest first.
// A reverse iterator walks from the newest key, skipping the earlier pages.
func (m *MessageRepository) Page(chatID string, page, size int) ([]chat.Message, int, error) {
	if page < 1 {
		page = 1
	}
	var messages []chat.Message
	total := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := chatMessagesPrefix(chatID)
		total = count(txn, prefix)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Let's go the newest position msg:{chat}:9999999999999999999
		skip := (page - 1) * size
		for it.Seek(append(prefix, []byte("9999999999999999999")...)); it.ValidForPrefix(prefix); it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(messages) == size {
				break
			}
			var message chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return decMode.Unmarshal(val, &message)
			}); err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	// Newest first from the iterator, chronological for display
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, total, nil
}

// DeleteByChat purges every message of a chat and returns them.
func (m *MessageRepository) DeleteByChat(chatID string) ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		messages, err = scan[chat.Message](txn, chatMessagesPrefix(chatID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, m.deleteAll(messages)
}

// DeleteBySender purges every message written by senderID, in any chat.
func (m *MessageRepository) DeleteBySender(senderID string) ([]chat.Message, error) {
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	var messages []chat.Message
	for _, message := range all {
		if message.SenderID == senderID {
			messages = append(messages, message)
		}
	}
	return messages, m.deleteAll(messages)
}

// deleteAll uses a write batch so large chats don't hit the transaction size
// limit.
func (m *MessageRepository) deleteAll(messages []chat.Message) error {
	if len(messages) == 0 {
		return nil
	}
	wb := m.db.NewWriteBatch()
	defer wb.Cancel()
	for _, message := range messages {
		if err := wb.Delete(messageKey(message)); err != nil {
			return err
		}
		if err := wb.Delete(messageIDKey(message.ID)); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	m.log.Debug("Messages deleted", "count", len(messages))
	return nil
}

func (m *MessageRepository) Count() (int, error) {
	n := 0
	err := m.db.View(func(txn *badger.Txn) error {
		n = count(txn, []byte("msgid:"))
		return nil
	})
	return n, err
}

func (m *MessageRepository) List() ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		messages, err = scan[chat.Message](txn, []byte("msg:"))
		return err
	})
	return messages, err
}
