package services

import (
	"context"
	"fmt"
	"time"

	"syncx/auth"
	"syncx/contract"
	"syncx/domain/chat"
	"syncx/domain/mimetypes"
	"syncx/errors"
	"syncx/repositories"

	"github.com/google/uuid"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest, avatar *contract.File) (chat.User, Token, error)
	Login(ctx context.Context, req auth.LoginRequest) (chat.User, Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	hasher         *auth.PasswordHasher
	tokens         *auth.TokenManager
	blobs          contract.BlobStore
	now            func() time.Time
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager, blobs contract.BlobStore) IAuthService {
	return &AuthService{
		userRepository: repo,
		hasher:         hasher,
		tokens:         tokens,
		blobs:          blobs,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest, avatar *contract.File) (chat.User, Token, error) {
	// 1. Validate business rules (handle format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(req); err != nil {
		return chat.User{}, "", err
	}
	if avatar != nil {
		if err := mimetypes.RequireImage(avatar.Name, avatar.Data); err != nil {
			return chat.User{}, "", err
		}
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return chat.User{}, "", fmt.Errorf("hashing failed: %w", err)
	}

	user := chat.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Username:     req.Username,
		PasswordHash: hashedPassword,
		Bio:          req.Bio,
		CreatedAt:    s.now(),
	}

	// 3. Upload the avatar, if any
	if avatar != nil {
		attachment, err := s.blobs.Upload(ctx, *avatar)
		if err != nil {
			return chat.User{}, "", fmt.Errorf("upload avatar: %w", err)
		}
		user.Avatar = &attachment
	}

	// 4. Persist the user with the generated hash
	if err = s.userRepository.Create(user); err != nil {
		if user.Avatar != nil {
			_ = s.blobs.Delete(ctx, user.Avatar.PublicID)
		}
		return chat.User{}, "", err // Will propagate ErrUserAlreadyExists if the handle is taken
	}

	// 5. Generate the initial session token
	token, err := s.tokens.GenerateUserToken(user.ID)
	if err != nil {
		return chat.User{}, "", errors.ErrTokenGeneration
	}

	return user, Token(token), nil
}

func (s *AuthService) Login(_ context.Context, req auth.LoginRequest) (chat.User, Token, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return chat.User{}, "", err
	}

	// 1. Retrieve user by handle from storage
	user, err := s.userRepository.GetByUsername(req.Username)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return chat.User{}, "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := s.hasher.Compare(req.Password, user.PasswordHash)
	if err != nil || !match {
		return chat.User{}, "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := s.tokens.GenerateUserToken(user.ID)
	if err != nil {
		return chat.User{}, "", errors.ErrTokenGeneration
	}

	return user, Token(token), nil
}
