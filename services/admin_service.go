package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/observability"
	"syncx/repositories"
	"syncx/runtime"

	"github.com/samber/lo"
)

type IAdminService interface {
	ListUsers(ctx context.Context) ([]AdminUser, error)
	ListChats(ctx context.Context) ([]AdminChat, error)
	ListMessages(ctx context.Context) ([]AdminMessage, error)
	Stats(ctx context.Context) (DashboardStats, error)
	UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (chat.User, error)
	DeleteUser(ctx context.Context, userID string) error
	RuntimeStats(ctx context.Context) observability.RuntimeStats
}

// OnlineSet exposes the users currently online.
type OnlineSet interface {
	Snapshot() []string
}

type AdminService struct {
	purger
	log      *slog.Logger
	users    repositories.IUserRepository
	requests repositories.IFriendRequestRepository
	router   contract.IRouter
	locks    *runtime.KeyedMutex
	online   OnlineSet
	registry contract.IRegistry
	metrics  *observability.Metrics
	policy   chat.SuccessorPolicy
	now      func() time.Time
}

type AdminDependencies struct {
	Users    repositories.IUserRepository
	Chats    repositories.IChatRepository
	Messages repositories.IMessageRepository
	Requests repositories.IFriendRequestRepository
	Blobs    contract.BlobStore
	Router   contract.IRouter
	Locks    *runtime.KeyedMutex
	Online   OnlineSet
	Registry contract.IRegistry
	Metrics  *observability.Metrics
}

func NewAdminService(log *slog.Logger, deps AdminDependencies) *AdminService {
	return &AdminService{
		purger:   purger{log: log, chats: deps.Chats, messages: deps.Messages, blobs: deps.Blobs},
		log:      log,
		users:    deps.Users,
		requests: deps.Requests,
		router:   deps.Router,
		locks:    deps.Locks,
		online:   deps.Online,
		registry: deps.Registry,
		metrics:  deps.Metrics,
		policy:   chat.FirstByInsertionOrder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AdminService) ListUsers(_ context.Context) ([]AdminUser, error) {
	users, err := s.users.List()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	result := make([]AdminUser, 0, len(users))
	for _, u := range users {
		chats, err := s.chats.ListByMember(u.ID)
		if err != nil {
			return nil, fmt.Errorf("list chats of %s: %w", u.ID, err)
		}
		groups := lo.CountBy(chats, func(c chat.Chat) bool { return c.IsGroup() })
		result = append(result, AdminUser{
			Member:    toMember(u),
			Bio:       u.Bio,
			Groups:    groups,
			Friends:   len(chats) - groups,
			CreatedAt: u.CreatedAt,
		})
	}
	return result, nil
}

func (s *AdminService) ListChats(_ context.Context) ([]AdminChat, error) {
	chats, err := s.chats.List()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	messages, err := s.messages.List()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	perChat := lo.CountValuesBy(messages, func(m chat.Message) string { return m.ChatID })

	result := make([]AdminChat, 0, len(chats))
	for _, c := range chats {
		members, err := s.users.GetMany(c.Members...)
		if err != nil {
			s.log.Warn("Chat references unknown users", "chat_id", c.ID, "error", err)
		}
		view := AdminChat{
			ID:            c.ID,
			Name:          c.Name,
			GroupChat:     c.IsGroup(),
			Avatar:        lo.Map(lo.Slice(members, 0, 3), func(u chat.User, _ int) string { return u.AvatarURL() }),
			Members:       toMembers(members),
			TotalMembers:  len(c.Members),
			TotalMessages: perChat[c.ID],
		}
		if creator, ok := lo.Find(members, func(u chat.User) bool { return u.ID == c.CreatorID }); ok {
			card := toMember(creator)
			view.Creator = &card
		}
		result = append(result, view)
	}
	return result, nil
}

func (s *AdminService) ListMessages(_ context.Context) ([]AdminMessage, error) {
	messages, err := s.messages.List()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	chats, err := s.chats.List()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	groups := lo.SliceToMap(chats, func(c chat.Chat) (string, bool) { return c.ID, c.IsGroup() })
	users, err := s.users.List()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	senders := lo.SliceToMap(users, func(u chat.User) (string, chat.Sender) { return u.ID, u.Summary() })

	return lo.Map(messages, func(m chat.Message, _ int) AdminMessage {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender = chat.Sender{ID: m.SenderID}
		}
		return AdminMessage{
			ID:          m.ID,
			Content:     m.Content,
			Attachments: m.Attachments,
			Sender:      sender,
			ChatID:      m.ChatID,
			GroupChat:   groups[m.ChatID],
			CreatedAt:   m.CreatedAt,
		}
	}), nil
}

func (s *AdminService) Stats(_ context.Context) (DashboardStats, error) {
	chats, err := s.chats.List()
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list chats: %w", err)
	}
	users, err := s.users.List()
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list users: %w", err)
	}
	messages, err := s.messages.List()
	if err != nil {
		return DashboardStats{}, fmt.Errorf("list messages: %w", err)
	}
	return DashboardStats{
		GroupsCount:     lo.CountBy(chats, func(c chat.Chat) bool { return c.IsGroup() }),
		UsersCount:      len(users),
		MessagesCount:   len(messages),
		TotalChatsCount: len(chats),
		MessagesChart:   lastSevenDays(messages, s.now()),
	}, nil
}

// lastSevenDays buckets messages by age in whole days; index 6 is the last
// 24 hours.
func lastSevenDays(messages []chat.Message, now time.Time) [7]int {
	var chart [7]int
	const day = 24 * time.Hour
	for _, m := range messages {
		age := now.Sub(m.CreatedAt)
		if age < 0 || age >= 7*day {
			continue
		}
		chart[6-int(age/day)]++
	}
	return chart
}

func (s *AdminService) UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (chat.User, error) {
	user, err := s.users.Get(userID)
	if err != nil {
		return chat.User{}, err
	}
	applyProfile(&user, update.Name, update.Username, update.Bio)
	if err = s.users.Update(user); err != nil {
		return chat.User{}, err
	}
	s.log.Info("User updated by admin", "user_id", userID)
	return user, nil
}

// DeleteUser removes an account and everything hanging off it: its chat
// memberships, its messages and their blobs, its pending requests in both
// directions and its avatar.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.users.Get(userID)
	if err != nil {
		return err
	}

	// 1. Leave every chat, handing groups over and dropping dead chats
	chats, err := s.chats.ListByMember(userID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	for _, c := range chats {
		if err = s.dropFromChat(ctx, c.ID, userID); err != nil {
			return err
		}
	}

	// 2. Messages and their attachments
	messages, err := s.messages.DeleteBySender(userID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	s.deleteBlobs(ctx, chat.PublicIDs(messages)...)

	// 3. Pending requests, both received and sent
	received, err := s.requests.ListByReceiver(userID)
	if err != nil {
		return fmt.Errorf("list received requests: %w", err)
	}
	sent, err := s.requests.ListBySender(userID)
	if err != nil {
		return fmt.Errorf("list sent requests: %w", err)
	}
	for _, r := range append(received, sent...) {
		if err = s.requests.Delete(r.ID); err != nil {
			s.log.Warn("Unable to delete friend request", "request_id", r.ID, "error", err)
		}
	}

	// 4. The account itself
	if user.Avatar != nil {
		s.deleteBlobs(ctx, user.Avatar.PublicID)
	}
	if err = s.users.Delete(userID); err != nil {
		return err
	}
	s.log.Info("User deleted", "user_id", userID, "chats", len(chats), "messages", len(messages))
	return nil
}

func (s *AdminService) dropFromChat(ctx context.Context, chatID, userID string) error {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	c, err := s.chats.Get(chatID)
	if err != nil {
		return err
	}
	c.DropUser(userID, s.policy, s.now())
	if c.State == chat.Deleted {
		err = s.purge(ctx, c)
	} else {
		err = s.chats.Save(c)
	}
	if err != nil {
		return err
	}
	s.router.Emit(ctx, event.RefetchChats, c.Others(userID), nil)
	return nil
}

func (s *AdminService) RuntimeStats(_ context.Context) observability.RuntimeStats {
	return s.metrics.Snapshot(len(s.online.Snapshot()), len(s.registry.Connections()))
}
