package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/domain/mimetypes"
	"syncx/errors"
	"syncx/repositories"
	"syncx/runtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	CreateGroup(ctx context.Context, callerID, name string, memberIDs []string) (chat.Chat, error)
	AddMembers(ctx context.Context, callerID, chatID string, memberIDs []string) (chat.Chat, error)
	RemoveMember(ctx context.Context, callerID, chatID, targetID string) (chat.Chat, error)
	AssignAdmin(ctx context.Context, callerID, chatID, targetID string) (chat.Chat, error)
	RemoveAdminRole(ctx context.Context, callerID, chatID string) (chat.Chat, error)
	LeaveGroup(ctx context.Context, callerID, chatID string) (chat.LeaveOutcome, error)
	DeleteGroup(ctx context.Context, callerID, chatID string) error
	RenameGroup(ctx context.Context, callerID, chatID, name string) (chat.Chat, error)
	EditGroup(ctx context.Context, callerID, chatID string, cmd EditGroupCommand) (chat.Chat, error)
	DeleteChat(ctx context.Context, callerID, chatID string) error
	DeleteDirectChat(ctx context.Context, callerID, chatID string) error
	ListMyChats(ctx context.Context, callerID string) ([]ChatView, error)
	ListMyGroups(ctx context.Context, callerID string) ([]GroupView, error)
	GetChatDetails(ctx context.Context, callerID, chatID string, populate bool) (ChatDetails, error)
}

// EditGroupCommand carries the group fields to change; nil fields are kept.
type EditGroupCommand struct {
	Name        *string
	Description *string
	Image       *contract.File
}

// ChatService runs the group lifecycle. Every mutation reads, validates
// and writes one chat while holding that chat's lock, then notifies.
type ChatService struct {
	purger
	log    *slog.Logger
	users  repositories.IUserRepository
	router contract.IRouter
	locks  *runtime.KeyedMutex
	policy chat.SuccessorPolicy
	now    func() time.Time
}

func NewChatService(
	log *slog.Logger,
	chats repositories.IChatRepository,
	users repositories.IUserRepository,
	messages repositories.IMessageRepository,
	blobs contract.BlobStore,
	router contract.IRouter,
	locks *runtime.KeyedMutex,
) *ChatService {
	return &ChatService{
		purger: purger{log: log, chats: chats, messages: messages, blobs: blobs},
		log:    log,
		users:  users,
		router: router,
		locks:  locks,
		policy: chat.FirstByInsertionOrder,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// mutate applies fn to the stored chat under its lock. A chat left in the
// Deleted state is purged instead of saved.
func (s *ChatService) mutate(ctx context.Context, chatID string, fn func(c *chat.Chat) error) (chat.Chat, error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	c, err := s.chats.Get(chatID)
	if err != nil {
		return chat.Chat{}, err
	}
	if err = fn(&c); err != nil {
		return chat.Chat{}, err
	}
	if c.State == chat.Deleted {
		return c, s.purge(ctx, c)
	}
	if err = s.chats.Save(c); err != nil {
		return chat.Chat{}, fmt.Errorf("save chat %s: %w", chatID, err)
	}
	return c, nil
}

func (s *ChatService) CreateGroup(ctx context.Context, callerID, name string, memberIDs []string) (chat.Chat, error) {
	// 1. Every member must be a known user
	if _, err := s.users.GetMany(lo.Uniq(memberIDs)...); err != nil {
		return chat.Chat{}, err
	}

	// 2. Build the aggregate, the creator becomes admin
	group, err := chat.NewGroup(uuid.NewString(), name, callerID, memberIDs, s.now())
	if err != nil {
		return chat.Chat{}, err
	}
	if err = s.chats.Save(group); err != nil {
		return chat.Chat{}, fmt.Errorf("save group: %w", err)
	}
	s.log.Info("Group created", "chat_id", group.ID, "members", len(group.Members))

	// 3. Notify
	s.alert(ctx, group.ID, group.Members, "Welcome to %s group", group.Name)
	s.refetch(ctx, group.Others(callerID))
	return group, nil
}

func (s *ChatService) AddMembers(ctx context.Context, callerID, chatID string, memberIDs []string) (chat.Chat, error) {
	if len(memberIDs) == 0 {
		return chat.Chat{}, errors.ErrValidation.WithMessage("please provide members")
	}
	newcomers, err := s.users.GetMany(lo.Uniq(memberIDs)...)
	if err != nil {
		return chat.Chat{}, err
	}

	var added []string
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		var err error
		added, err = c.AddMembers(callerID, memberIDs, s.now())
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}

	// Only people who were not members already are announced
	joined := lo.Filter(newcomers, func(u chat.User, _ int) bool { return slices.Contains(added, u.ID) })
	if len(joined) > 0 {
		names := lo.Map(joined, func(u chat.User, _ int) string { return u.Name })
		s.alert(ctx, group.ID, group.Members, "%s has been added in the group", strings.Join(names, ", "))
	}
	s.refetch(ctx, group.Members)
	return group, nil
}

func (s *ChatService) RemoveMember(ctx context.Context, callerID, chatID, targetID string) (chat.Chat, error) {
	var before []string
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		before = c.Members
		return c.RemoveMember(callerID, targetID, s.now())
	})
	if err != nil {
		return chat.Chat{}, err
	}

	s.alert(ctx, group.ID, group.Members, "%s has been removed from the group", s.name(targetID))
	s.refetch(ctx, before)
	return group, nil
}

func (s *ChatService) AssignAdmin(ctx context.Context, callerID, chatID, targetID string) (chat.Chat, error) {
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		return c.AssignAdmin(callerID, targetID, s.now())
	})
	if err != nil {
		return chat.Chat{}, err
	}

	s.alert(ctx, group.ID, group.Members, "%s has been promoted to group admin", s.name(targetID))
	s.refetch(ctx, group.Members)
	return group, nil
}

func (s *ChatService) RemoveAdminRole(ctx context.Context, callerID, chatID string) (chat.Chat, error) {
	var successor string
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		var err error
		successor, err = c.RemoveAdminRole(callerID, s.policy, s.now())
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}

	s.alert(ctx, group.ID, group.Members, "%s is now the group admin", s.name(successor))
	s.refetch(ctx, group.Members)
	return group, nil
}

func (s *ChatService) LeaveGroup(ctx context.Context, callerID, chatID string) (chat.LeaveOutcome, error) {
	var outcome chat.LeaveOutcome
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		var err error
		outcome, err = c.Leave(callerID, s.policy, s.now())
		return err
	})
	if err != nil {
		return chat.LeaveOutcome{}, err
	}

	if outcome.Deleted {
		s.log.Info("Group deleted, last member left", "chat_id", chatID)
		s.refetch(ctx, []string{callerID})
		return outcome, nil
	}
	if outcome.NewAdmin != "" {
		s.alert(ctx, group.ID, group.Members, "%s is now the group admin", s.name(outcome.NewAdmin))
	}
	s.alert(ctx, group.ID, group.Members, "%s has left the group", s.name(callerID))
	s.refetch(ctx, append(slices.Clone(group.Members), callerID))
	return outcome, nil
}

func (s *ChatService) DeleteGroup(ctx context.Context, callerID, chatID string) error {
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		return c.Delete(callerID, s.now())
	})
	if err != nil {
		return err
	}
	s.refetch(ctx, group.Members)
	return nil
}

func (s *ChatService) RenameGroup(ctx context.Context, callerID, chatID, name string) (chat.Chat, error) {
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		_, err := c.Edit(callerID, chat.GroupEdit{Name: &name}, s.now())
		return err
	})
	if err != nil {
		return chat.Chat{}, err
	}
	s.refetch(ctx, group.Members)
	return group, nil
}

// EditGroup uploads the new image first. The upload is discarded when the
// edit is rejected, and the replaced image is deleted once the edit is saved.
func (s *ChatService) EditGroup(ctx context.Context, callerID, chatID string, cmd EditGroupCommand) (chat.Chat, error) {
	edit := chat.GroupEdit{Name: cmd.Name, Description: cmd.Description}
	if cmd.Image != nil {
		if err := mimetypes.RequireImage(cmd.Image.Name, cmd.Image.Data); err != nil {
			return chat.Chat{}, err
		}
		image, err := s.blobs.Upload(ctx, *cmd.Image)
		if err != nil {
			return chat.Chat{}, fmt.Errorf("upload group image: %w", err)
		}
		edit.Image = &image
	}

	var replaced *chat.Attachment
	group, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		var err error
		replaced, err = c.Edit(callerID, edit, s.now())
		return err
	})
	if err != nil {
		if edit.Image != nil {
			s.deleteBlobs(ctx, edit.Image.PublicID)
		}
		return chat.Chat{}, err
	}
	if replaced != nil {
		s.deleteBlobs(ctx, replaced.PublicID)
	}

	s.alert(ctx, group.ID, group.Members, "Group details have been updated")
	s.refetch(ctx, group.Members)
	return group, nil
}

// DeleteChat deletes a direct chat, or a group on behalf of its admin.
func (s *ChatService) DeleteChat(ctx context.Context, callerID, chatID string) error {
	c, err := s.chats.Get(chatID)
	if err != nil {
		return err
	}
	if c.IsGroup() {
		return s.DeleteGroup(ctx, callerID, chatID)
	}
	return s.DeleteDirectChat(ctx, callerID, chatID)
}

func (s *ChatService) DeleteDirectChat(ctx context.Context, callerID, chatID string) error {
	direct, err := s.mutate(ctx, chatID, func(c *chat.Chat) error {
		return c.DeleteDirect(callerID, s.now())
	})
	if err != nil {
		return err
	}
	s.refetch(ctx, direct.Members)
	return nil
}

func (s *ChatService) ListMyChats(_ context.Context, callerID string) ([]ChatView, error) {
	chats, err := s.chats.ListByMember(callerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	views := make([]ChatView, 0, len(chats))
	for _, c := range chats {
		members, err := s.users.GetMany(c.Members...)
		if err != nil {
			s.log.Warn("Skipping chat with unknown members", "chat_id", c.ID, "error", err)
			continue
		}
		others := lo.Filter(members, func(u chat.User, _ int) bool { return u.ID != callerID })

		if !c.IsGroup() {
			if len(c.Members) != 2 || len(others) != 1 {
				s.log.Error("Invalid direct chat", "chat_id", c.ID, "members", len(c.Members))
				continue
			}
			other := others[0]
			views = append(views, ChatView{
				ID:      c.ID,
				Avatar:  []string{other.AvatarURL()},
				Name:    other.Name,
				Members: []Member{toMember(other)},
			})
			continue
		}
		views = append(views, ChatView{
			ID:               c.ID,
			GroupChat:        true,
			Avatar:           groupAvatar(c, members),
			Name:             c.Name,
			Members:          toMembers(others),
			GroupAdmin:       c.AdminID,
			GroupImage:       c.Image,
			GroupDescription: c.Description,
		})
	}
	return views, nil
}

func (s *ChatService) ListMyGroups(_ context.Context, callerID string) ([]GroupView, error) {
	chats, err := s.chats.ListByMember(callerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	groups := make([]GroupView, 0, len(chats))
	for _, c := range lo.Filter(chats, func(c chat.Chat, _ int) bool { return c.IsGroup() }) {
		members, err := s.users.GetMany(lo.Slice(c.Members, 0, 3)...)
		if err != nil {
			s.log.Warn("Unable to resolve group members", "chat_id", c.ID, "error", err)
		}
		groups = append(groups, GroupView{
			ID:               c.ID,
			GroupChat:        true,
			Name:             c.Name,
			Avatar:           groupAvatar(c, members),
			GroupAdmin:       c.AdminID,
			GroupImage:       c.Image,
			GroupDescription: c.Description,
		})
	}
	return groups, nil
}

func (s *ChatService) GetChatDetails(_ context.Context, callerID, chatID string, populate bool) (ChatDetails, error) {
	c, err := s.chats.Get(chatID)
	if err != nil {
		return ChatDetails{}, err
	}
	if !c.IsMember(callerID) {
		return ChatDetails{}, errors.ErrNotMember
	}
	details := ChatDetails{Chat: c}
	if populate {
		members, err := s.users.GetMany(c.Members...)
		if err != nil {
			return ChatDetails{}, err
		}
		details.Populated = toMembers(members)
	}
	return details, nil
}

// name resolves a display name for alerts, falling back to the id.
func (s *ChatService) name(userID string) string {
	user, err := s.users.Get(userID)
	if err != nil {
		return userID
	}
	return user.Name
}

func (s *ChatService) alert(ctx context.Context, chatID string, targets []string, format string, args ...any) {
	s.router.Emit(ctx, event.Alert, targets, event.AlertPayload{ChatID: chatID, Message: fmt.Sprintf(format, args...)})
}

func (s *ChatService) refetch(ctx context.Context, targets []string) {
	s.router.Emit(ctx, event.RefetchChats, targets, nil)
}
