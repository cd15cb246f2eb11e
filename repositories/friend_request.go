package repositories

import (
	"slices"

	"syncx/domain/chat"
	"syncx/errors"

	"github.com/dgraph-io/badger/v4"
)

type IFriendRequestRepository interface {
	Create(request chat.FriendRequest) error
	Get(id string) (chat.FriendRequest, error)
	Delete(id string) error
	ListByReceiver(receiverID string) ([]chat.FriendRequest, error)
	ListBySender(senderID string) ([]chat.FriendRequest, error)
	FindPending(a, b string) (chat.FriendRequest, bool, error)
}

// FriendRequestRepository keeps "freq:{id}" records plus three indexes:
// "freq_pair:{a}:{b}" (sorted pair) -> id enforces one pending request per
// pair, "freq_to:{receiver}:{id}" lists a receiver's inbox and
// "freq_from:{sender}:{id}" lists what a sender still has outstanding.
type FriendRequestRepository struct {
	db *badger.DB
}

func NewFriendRequestRepository(db *badger.DB) *FriendRequestRepository {
	return &FriendRequestRepository{db: db}
}

func requestKey(id string) []byte { return []byte("freq:" + id) }

func pairKey(pair string) []byte { return []byte("freq_pair:" + pair) }

func inboxKey(receiverID, id string) []byte { return []byte("freq_to:" + receiverID + ":" + id) }

func outboxKey(senderID, id string) []byte { return []byte("freq_from:" + senderID + ":" + id) }

// Create stores a request unless the pair already has one pending, in either
// direction. The check and the write share one transaction.
func (r *FriendRequestRepository) Create(request chat.FriendRequest) error {
	return r.db.Update(func(txn *badger.Txn) error {
		pending, err := exists(txn, pairKey(request.PairKey()))
		if err != nil {
			return err
		}
		if pending {
			return errors.ErrDuplicateRequest
		}
		if err = txn.Set(pairKey(request.PairKey()), []byte(request.ID)); err != nil {
			return err
		}
		if err = txn.Set(inboxKey(request.ReceiverID, request.ID), nil); err != nil {
			return err
		}
		if err = txn.Set(outboxKey(request.SenderID, request.ID), nil); err != nil {
			return err
		}
		return set(txn, requestKey(request.ID), request)
	})
}

func (r *FriendRequestRepository) Get(id string) (chat.FriendRequest, error) {
	var request chat.FriendRequest
	err := r.db.View(func(txn *badger.Txn) error {
		return get(txn, requestKey(id), &request, errors.ErrRequestNotFound)
	})
	return request, err
}

func (r *FriendRequestRepository) Delete(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		var request chat.FriendRequest
		if err := get(txn, requestKey(id), &request, errors.ErrRequestNotFound); err != nil {
			return err
		}
		for _, key := range [][]byte{
			pairKey(request.PairKey()),
			inboxKey(request.ReceiverID, id),
			outboxKey(request.SenderID, id),
			requestKey(id),
		} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByReceiver returns the pending requests addressed to receiverID,
// oldest first.
func (r *FriendRequestRepository) ListByReceiver(receiverID string) ([]chat.FriendRequest, error) {
	return r.list([]byte("freq_to:" + receiverID + ":"))
}

// ListBySender returns the pending requests senderID is still waiting on,
// oldest first.
func (r *FriendRequestRepository) ListBySender(senderID string) ([]chat.FriendRequest, error) {
	return r.list([]byte("freq_from:" + senderID + ":"))
}

func (r *FriendRequestRepository) list(prefix []byte) ([]chat.FriendRequest, error) {
	var requests []chat.FriendRequest
	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range keys(txn, prefix) {
			var request chat.FriendRequest
			if err := get(txn, requestKey(id), &request, errors.ErrRequestNotFound); err != nil {
				return err
			}
			requests = append(requests, request)
		}
		return nil
	})
	slices.SortStableFunc(requests, func(a, b chat.FriendRequest) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return requests, err
}

// FindPending returns the pending request between a and b, whoever sent it.
func (r *FriendRequestRepository) FindPending(a, b string) (chat.FriendRequest, bool, error) {
	var request chat.FriendRequest
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(chat.PairKey(a, b)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		found = true
		return get(txn, requestKey(string(id)), &request, errors.ErrRequestNotFound)
	})
	return request, found, err
}
