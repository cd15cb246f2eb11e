package repositories

import (
	"slices"

	"syncx/domain/chat"
	"syncx/errors"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	Save(c chat.Chat) error
	Get(id string) (chat.Chat, error)
	Delete(id string) error
	ListByMember(userID string) ([]chat.Chat, error)
	List() ([]chat.Chat, error)
	FindDirect(a, b string) (chat.Chat, bool, error)
}

// ChatRepository stores chats under "chat:{id}" and indexes membership as
// empty "member:{user}:{chat}" keys so a user's chats are a prefix scan.
type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func chatKey(id string) []byte { return []byte("chat:" + id) }

func memberKey(userID, chatID string) []byte {
	return []byte("member:" + userID + ":" + chatID)
}

func memberPrefix(userID string) []byte { return []byte("member:" + userID + ":") }

// Save writes c and brings the membership index in line with c.Members.
func (r *ChatRepository) Save(c chat.Chat) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var previous chat.Chat
		err := get(txn, chatKey(c.ID), &previous, errors.ErrChatNotFound)
		if err != nil && !errors.Is(err, errors.ErrChatNotFound) {
			return err
		}
		for _, userID := range previous.Members {
			if !slices.Contains(c.Members, userID) {
				if err = txn.Delete(memberKey(userID, c.ID)); err != nil {
					return err
				}
			}
		}
		for _, userID := range c.Members {
			if err = txn.Set(memberKey(userID, c.ID), nil); err != nil {
				return err
			}
		}
		return set(txn, chatKey(c.ID), c)
	})
}

func (r *ChatRepository) Get(id string) (chat.Chat, error) {
	var c chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		return get(txn, chatKey(id), &c, errors.ErrChatNotFound)
	})
	return c, err
}

// Delete removes the chat record and its membership index. Messages are
// purged separately.
func (r *ChatRepository) Delete(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var c chat.Chat
		if err := get(txn, chatKey(id), &c, errors.ErrChatNotFound); err != nil {
			return err
		}
		for _, userID := range c.Members {
			if err := txn.Delete(memberKey(userID, id)); err != nil {
				return err
			}
		}
		return txn.Delete(chatKey(id))
	})
}

// ListByMember returns the chats userID belongs to, most recently updated
// first.
func (r *ChatRepository) ListByMember(userID string) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		for _, chatID := range keys(txn, memberPrefix(userID)) {
			var c chat.Chat
			err := get(txn, chatKey(chatID), &c, errors.ErrChatNotFound)
			if errors.Is(err, errors.ErrChatNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			chats = append(chats, c)
		}
		return nil
	})
	slices.SortStableFunc(chats, func(a, b chat.Chat) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return chats, err
}

func (r *ChatRepository) List() ([]chat.Chat, error) {
	var chats []chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		chats, err = scan[chat.Chat](txn, []byte("chat:"))
		return err
	})
	return chats, err
}

// FindDirect looks up the direct chat between a and b.
func (r *ChatRepository) FindDirect(a, b string) (chat.Chat, bool, error) {
	chats, err := r.ListByMember(a)
	if err != nil {
		return chat.Chat{}, false, err
	}
	for _, c := range chats {
		if !c.IsGroup() && c.IsMember(b) {
			return c, true, nil
		}
	}
	return chat.Chat{}, false, nil
}
