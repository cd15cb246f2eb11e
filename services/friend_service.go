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
	"syncx/repositories"
	"syncx/runtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IFriendService interface {
	SendRequest(ctx context.Context, senderID, receiverID string) (chat.FriendRequest, error)
	Respond(ctx context.Context, callerID, requestID string, accept bool) (RespondResult, error)
	ListNotifications(ctx context.Context, callerID string) ([]Notification, error)
	ListFriends(ctx context.Context, callerID, availableFor string) ([]Member, error)
	RemoveFriend(ctx context.Context, callerID, friendID string) error
}

// FriendService runs the friend request workflow. Accepting a request is
// the only way a direct chat comes to exist.
type FriendService struct {
	log      *slog.Logger
	requests repositories.IFriendRequestRepository
	users    repositories.IUserRepository
	chats    repositories.IChatRepository
	direct   IChatService
	router   contract.IRouter
	locks    *runtime.KeyedMutex
	now      func() time.Time
}

func NewFriendService(
	log *slog.Logger,
	requests repositories.IFriendRequestRepository,
	users repositories.IUserRepository,
	chats repositories.IChatRepository,
	direct IChatService,
	router contract.IRouter,
	locks *runtime.KeyedMutex,
) *FriendService {
	return &FriendService{
		log:      log,
		requests: requests,
		users:    users,
		chats:    chats,
		direct:   direct,
		router:   router,
		locks:    locks,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// pairLock serializes every request operation on the unordered pair a, b.
func (s *FriendService) pairLock(a, b string) func() {
	return s.locks.Lock("pair:" + chat.PairKey(a, b))
}

func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID string) (chat.FriendRequest, error) {
	request, err := chat.NewFriendRequest(uuid.NewString(), senderID, receiverID, s.now())
	if err != nil {
		return chat.FriendRequest{}, err
	}
	if _, err = s.users.Get(receiverID); err != nil {
		return chat.FriendRequest{}, err
	}

	unlock := s.pairLock(senderID, receiverID)
	defer unlock()

	// The repository rejects a pending request in either direction
	if err = s.requests.Create(request); err != nil {
		return chat.FriendRequest{}, err
	}
	s.log.Debug("Friend request sent", "request_id", request.ID, "sender", senderID, "receiver", receiverID)

	s.router.Emit(ctx, event.NewRequest, []string{receiverID}, nil)
	return request, nil
}

func (s *FriendService) Respond(ctx context.Context, callerID, requestID string, accept bool) (RespondResult, error) {
	request, err := s.requests.Get(requestID)
	if err != nil {
		return RespondResult{}, err
	}
	if request.ReceiverID != callerID {
		return RespondResult{}, errors.ErrNotTarget
	}

	unlock := s.pairLock(request.SenderID, request.ReceiverID)
	defer unlock()

	// Another response may have consumed it while we waited for the lock
	if _, err = s.requests.Get(requestID); err != nil {
		return RespondResult{}, err
	}
	result := RespondResult{SenderID: request.SenderID, Accepted: accept}
	if accept {
		// The request outlives a failed chat creation so it can be answered again
		direct, err := s.openDirect(request)
		if err != nil {
			return RespondResult{}, err
		}
		result.Chat = &direct
	}
	if err = s.requests.Delete(requestID); err != nil {
		return RespondResult{}, err
	}
	if !accept {
		s.log.Debug("Friend request rejected", "request_id", requestID)
		return result, nil
	}

	s.router.Emit(ctx, event.RefetchChats, result.Chat.Members, nil)
	return result, nil
}

// openDirect creates the pair's direct chat, reusing one that already exists.
func (s *FriendService) openDirect(request chat.FriendRequest) (chat.Chat, error) {
	existing, found, err := s.chats.FindDirect(request.SenderID, request.ReceiverID)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("find direct chat: %w", err)
	}
	if found {
		return existing, nil
	}
	parties, err := s.users.GetMany(request.SenderID, request.ReceiverID)
	if err != nil {
		return chat.Chat{}, err
	}
	name := parties[0].Name + "-" + parties[1].Name
	direct, err := chat.NewDirect(uuid.NewString(), name, request.SenderID, request.ReceiverID, s.now())
	if err != nil {
		return chat.Chat{}, err
	}
	if err = s.chats.Save(direct); err != nil {
		return chat.Chat{}, fmt.Errorf("save direct chat: %w", err)
	}
	s.log.Info("Direct chat created", "chat_id", direct.ID)
	return direct, nil
}

func (s *FriendService) ListNotifications(_ context.Context, callerID string) ([]Notification, error) {
	requests, err := s.requests.ListByReceiver(callerID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	notifications := make([]Notification, 0, len(requests))
	for _, request := range requests {
		sender, err := s.users.Get(request.SenderID)
		if err != nil {
			s.log.Warn("Skipping request from unknown sender", "request_id", request.ID, "error", err)
			continue
		}
		notifications = append(notifications, Notification{
			ID:        request.ID,
			Sender:    sender.Summary(),
			CreatedAt: request.CreatedAt,
		})
	}
	return notifications, nil
}

// ListFriends returns the other party of every direct chat. With
// availableFor set, friends already in that chat are left out.
func (s *FriendService) ListFriends(_ context.Context, callerID, availableFor string) ([]Member, error) {
	chats, err := s.chats.ListByMember(callerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	friendIDs := lo.FlatMap(chats, func(c chat.Chat, _ int) []string {
		if c.IsGroup() {
			return nil
		}
		return c.Others(callerID)
	})

	if availableFor != "" {
		target, err := s.chats.Get(availableFor)
		if err != nil {
			return nil, err
		}
		friendIDs = lo.Filter(friendIDs, func(id string, _ int) bool { return !target.IsMember(id) })
	}

	friends, err := s.users.GetMany(lo.Uniq(friendIDs)...)
	if err != nil {
		return nil, err
	}
	return lo.Map(friends, func(u chat.User, _ int) Member {
		return Member{ID: u.ID, Name: u.Name, Avatar: u.AvatarURL()}
	}), nil
}

// RemoveFriend deletes the direct chat shared with friendID.
func (s *FriendService) RemoveFriend(ctx context.Context, callerID, friendID string) error {
	direct, found, err := s.chats.FindDirect(callerID, friendID)
	if err != nil {
		return fmt.Errorf("find direct chat: %w", err)
	}
	if !found {
		return errors.ErrChatNotFound.WithMessage("no chat with this friend")
	}
	return s.direct.DeleteDirectChat(ctx, callerID, direct.ID)
}
