package chat

import (
	"time"

	"syncx/errors"
)

// FriendRequest is pending until its receiver accepts or rejects it; both
// outcomes delete it.
type FriendRequest struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"sender"`
	ReceiverID string    `json:"receiver"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewFriendRequest(id, senderID, receiverID string, now time.Time) (FriendRequest, error) {
	if senderID == receiverID {
		return FriendRequest{}, errors.ErrSelfReference.WithMessage("cannot send a friend request to yourself")
	}
	return FriendRequest{ID: id, SenderID: senderID, ReceiverID: receiverID, CreatedAt: now}, nil
}

// PairKey identifies the unordered pair of users a request belongs to.
func (r FriendRequest) PairKey() string { return PairKey(r.SenderID, r.ReceiverID) }

func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
