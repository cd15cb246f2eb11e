//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"strings"

	"syncx/domain/chat"
	"syncx/errors"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	Create(user chat.User) error
	Get(id string) (chat.User, error)
	GetMany(ids ...string) ([]chat.User, error)
	GetByUsername(username string) (chat.User, error)
	Update(user chat.User) error
	Delete(id string) error
	List() ([]chat.User, error)
}

// UserRepository stores users under "user:{id}" and keeps the handle index
// "user_handle:{lowercase username}" -> id, which enforces uniqueness.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(id string) []byte { return []byte("user:" + id) }

func handleKey(username string) []byte {
	return []byte("user_handle:" + strings.ToLower(username))
}

// Create persists a new user. A taken handle fails with ErrUserAlreadyExists.
func (r *UserRepository) Create(user chat.User) error {
	return r.db.Update(func(txn *badger.Txn) error {
		taken, err := exists(txn, handleKey(user.Username))
		if err != nil {
			return err
		}
		if taken {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(handleKey(user.Username), []byte(user.ID)); err != nil {
			return err
		}
		return set(txn, userKey(user.ID), user)
	})
}

func (r *UserRepository) Get(id string) (chat.User, error) {
	var user chat.User
	err := r.db.View(func(txn *badger.Txn) error {
		return get(txn, userKey(id), &user, errors.ErrUserNotFound)
	})
	return user, err
}

// GetMany returns users in the order of ids and fails if any is unknown.
func (r *UserRepository) GetMany(ids ...string) ([]chat.User, error) {
	users := make([]chat.User, 0, len(ids))
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var user chat.User
			if err := get(txn, userKey(id), &user, errors.ErrUserNotFound.WithMessage("user %s not found", id)); err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

// GetByUsername resolves a handle, case-insensitively.
func (r *UserRepository) GetByUsername(username string) (chat.User, error) {
	var user chat.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(handleKey(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return get(txn, userKey(string(id)), &user, errors.ErrUserNotFound)
	})
	return user, err
}

// Update replaces a user record, moving the handle index when the username
// changes.
func (r *UserRepository) Update(user chat.User) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var current chat.User
		if err := get(txn, userKey(user.ID), &current, errors.ErrUserNotFound); err != nil {
			return err
		}
		if !strings.EqualFold(current.Username, user.Username) {
			taken, err := exists(txn, handleKey(user.Username))
			if err != nil {
				return err
			}
			if taken {
				return errors.ErrUserAlreadyExists
			}
			if err = txn.Delete(handleKey(current.Username)); err != nil {
				return err
			}
			if err = txn.Set(handleKey(user.Username), []byte(user.ID)); err != nil {
				return err
			}
		}
		return set(txn, userKey(user.ID), user)
	})
}

func (r *UserRepository) Delete(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var current chat.User
		if err := get(txn, userKey(id), &current, errors.ErrUserNotFound); err != nil {
			return err
		}
		if err := txn.Delete(handleKey(current.Username)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

func (r *UserRepository) List() ([]chat.User, error) {
	var users []chat.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		users, err = scan[chat.User](txn, []byte("user:"))
		return err
	})
	return users, err
}
