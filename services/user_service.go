package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"syncx/auth"
	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/mimetypes"
	"syncx/repositories"

	"github.com/samber/lo"
)

type IUserService interface {
	GetProfile(ctx context.Context, userID string) (chat.User, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (chat.User, error)
	SearchUsers(ctx context.Context, callerID, name string) ([]Member, error)
}

// ProfileUpdate lists the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	Name     *string        `form:"name" json:"name" validate:"omitempty,min=1,max=64"`
	Username *string        `form:"username" json:"username" validate:"omitempty,min=3,max=32,handle"`
	Bio      *string        `form:"bio" json:"bio" validate:"omitempty,max=280"`
	Avatar   *contract.File `form:"-" json:"-"`
}

type UserService struct {
	log   *slog.Logger
	users repositories.IUserRepository
	chats repositories.IChatRepository
	blobs contract.BlobStore
}

func NewUserService(log *slog.Logger, users repositories.IUserRepository, chats repositories.IChatRepository, blobs contract.BlobStore) *UserService {
	return &UserService{log: log, users: users, chats: chats, blobs: blobs}
}

func (s *UserService) GetProfile(_ context.Context, userID string) (chat.User, error) {
	return s.users.Get(userID)
}

// UpdateProfile applies update. A new avatar replaces the stored one, whose
// blob is deleted once the user is saved.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (chat.User, error) {
	if err := auth.Validate(update); err != nil {
		return chat.User{}, err
	}
	if update.Avatar != nil {
		if err := mimetypes.RequireImage(update.Avatar.Name, update.Avatar.Data); err != nil {
			return chat.User{}, err
		}
	}
	user, err := s.users.Get(userID)
	if err != nil {
		return chat.User{}, err
	}
	applyProfile(&user, update.Name, update.Username, update.Bio)

	var replaced *chat.Attachment
	if update.Avatar != nil {
		avatar, err := s.blobs.Upload(ctx, *update.Avatar)
		if err != nil {
			return chat.User{}, fmt.Errorf("upload avatar: %w", err)
		}
		replaced, user.Avatar = user.Avatar, &avatar
	}

	if err = s.users.Update(user); err != nil {
		if update.Avatar != nil {
			_ = s.blobs.Delete(ctx, user.Avatar.PublicID)
		}
		return chat.User{}, err
	}
	if replaced != nil && replaced.PublicID != "" {
		if err = s.blobs.Delete(ctx, replaced.PublicID); err != nil {
			s.log.Warn("Unable to delete replaced avatar", "user_id", userID, "error", err)
		}
	}
	return user, nil
}

func applyProfile(user *chat.User, name, username, bio *string) {
	if name != nil {
		user.Name = *name
	}
	if username != nil {
		user.Username = *username
	}
	if bio != nil {
		user.Bio = *bio
	}
}

// SearchUsers matches names case-insensitively, leaving out the caller and
// the users it already shares a direct chat with.
func (s *UserService) SearchUsers(_ context.Context, callerID, name string) ([]Member, error) {
	chats, err := s.chats.ListByMember(callerID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	excluded := map[string]struct{}{callerID: {}}
	for _, c := range chats {
		if c.IsGroup() {
			continue
		}
		for _, id := range c.Members {
			excluded[id] = struct{}{}
		}
	}

	users, err := s.users.List()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	needle := strings.ToLower(name)
	matches := lo.Filter(users, func(u chat.User, _ int) bool {
		_, skip := excluded[u.ID]
		return !skip && strings.Contains(strings.ToLower(u.Name), needle)
	})
	return lo.Map(matches, func(u chat.User, _ int) Member {
		return Member{ID: u.ID, Name: u.Name, Avatar: u.AvatarURL()}
	}), nil
}
